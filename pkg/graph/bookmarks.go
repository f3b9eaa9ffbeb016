package graph

import (
	"context"
	"strings"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/types"
)

// SetBookmark points a named bookmark at a commit. The commit must exist.
func (g *Graph) SetBookmark(ctx context.Context, name, sha string) error {
	if err := types.ValidateName(name); err != nil {
		return errdefs.Wrap(err, errdefs.CodeValidation, "bookmark name")
	}
	if _, err := g.store.GetNodeInfo(ctx, sha); err != nil {
		return err
	}
	return g.store.UpdateRef(ctx, types.BookmarkRef(g.name, name), sha)
}

// Bookmark resolves a named bookmark to its commit sha.
func (g *Graph) Bookmark(ctx context.Context, name string) (string, error) {
	sha, err := g.store.ReadRef(ctx, types.BookmarkRef(g.name, name))
	if err != nil {
		return "", err
	}
	if sha == "" {
		return "", errdefs.Newf(errdefs.CodeNotFound, "bookmark %q not found", name)
	}
	return sha, nil
}

// DeleteBookmark removes a named bookmark. Deleting an absent bookmark is
// not an error.
func (g *Graph) DeleteBookmark(ctx context.Context, name string) error {
	return g.store.DeleteRef(ctx, types.BookmarkRef(g.name, name))
}

// ListBookmarks returns name → sha for every bookmark of the graph.
func (g *Graph) ListBookmarks(ctx context.Context) (map[string]string, error) {
	prefix := types.BookmarksPrefix(g.name)
	refs, err := g.store.ListRefs(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(refs))
	for ref, sha := range refs {
		out[strings.TrimPrefix(ref, prefix)] = sha
	}
	return out, nil
}
