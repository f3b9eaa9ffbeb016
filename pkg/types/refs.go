package types

// Ref layout under the object store. Graph names and writer ids are
// validated against the shared name charset before they reach these paths,
// so the resulting refs cannot alias each other.

// WritersPrefix returns the ref prefix holding every writer tip of a graph.
func WritersPrefix(graph string) string {
	return "refs/warp/" + graph + "/writers/"
}

// WriterRef returns the ref holding a writer's chain tip.
func WriterRef(graph, writerID string) string {
	return WritersPrefix(graph) + writerID
}

// AuditRef returns the ref holding a writer's audit chain tip.
func AuditRef(graph, writerID string) string {
	return "refs/warp/" + graph + "/audit/" + writerID
}

// CheckpointRef returns the ref holding the latest checkpoint commit.
func CheckpointRef(graph string) string {
	return "refs/warp/" + graph + "/checkpoints/head"
}

// IndexRef returns the ref holding the bitmap index commit.
func IndexRef(graph string) string {
	return "refs/warp/" + graph + "/index"
}

// BookmarkRef returns the ref holding a named seek bookmark.
func BookmarkRef(graph, name string) string {
	return "refs/warp/" + graph + "/bookmarks/" + name
}

// BookmarksPrefix returns the ref prefix holding a graph's bookmarks.
func BookmarksPrefix(graph string) string {
	return "refs/warp/" + graph + "/bookmarks/"
}
