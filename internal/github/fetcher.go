// Package github reads a medical knowledge base kept in a GitHub repository.
package github

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"

	"github.com/google/go-github/v81/github"

	"github.com/bull/medrag/internal/source"
)

// Repo identifies the directory of a repository holding knowledge files.
type Repo struct {
	Owner    string
	Name     string
	BasePath string
	Ref      string // Branch, tag or commit; empty means the default branch
}

// Fetcher implements source.Source over a GitHub repository directory.
type Fetcher struct {
	client *Client
	repo   Repo
}

var _ source.Source = (*Fetcher)(nil)

// NewFetcher creates a new document fetcher
func NewFetcher(client *Client, repo Repo) *Fetcher {
	return &Fetcher{client: client, repo: repo}
}

func (f *Fetcher) Name() string {
	return fmt.Sprintf("github:%s/%s/%s", f.repo.Owner, f.repo.Name, f.repo.BasePath)
}

func (f *Fetcher) contentOptions() *github.RepositoryContentGetOptions {
	if f.repo.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.repo.Ref}
}

// List recursively lists all knowledge files in the repository directory
func (f *Fetcher) List(ctx context.Context) ([]string, error) {
	docs, err := f.listRecursive(ctx, f.repo.BasePath, "")
	if err != nil {
		return nil, err
	}
	sort.Strings(docs)
	return docs, nil
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.repo.Owner,
		f.repo.Name,
		fullPath,
		f.contentOptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if source.IsKnowledgeFile(*item.Name) {
				docs = append(docs, itemRelPath)
			}

		case "dir":
			subDocs, err := f.listRecursive(ctx, path.Join(fullPath, *item.Name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}

	return docs, nil
}

// Fetch fetches the content of a specific knowledge file
func (f *Fetcher) Fetch(ctx context.Context, relativePath string) (*source.Document, error) {
	fullPath := path.Join(f.repo.BasePath, relativePath)

	fileContent, _, resp, err := f.client.Repositories.GetContents(
		ctx,
		f.repo.Owner,
		f.repo.Name,
		fullPath,
		f.contentOptions(),
	)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, fullPath)
		}
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil || fileContent.Content == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	return &source.Document{
		Path:    relativePath,
		Content: content,
		URL:     fileContent.GetHTMLURL(),
	}, nil
}

// Revision retrieves the SHA of the most recent commit affecting the knowledge directory
func (f *Fetcher) Revision(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.repo.Owner,
		f.repo.Name,
		&github.CommitsListOptions{
			SHA:  f.repo.Ref,
			Path: f.repo.BasePath,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.repo.BasePath)
	}

	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}

	return *commits[0].SHA, nil
}
