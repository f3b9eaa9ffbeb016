// Package provenance maps entities to the patches that touched them,
// enabling slice materialization (replay only the patches relevant to one
// entity) without walking every writer chain.
package provenance
