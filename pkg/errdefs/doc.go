/*
Package errdefs defines the coded errors that cross the engine boundary.

Every failure a caller is expected to branch on carries a stable Code
(WRITER_CAS_CONFLICT, E_SCHEMA_UNSUPPORTED, ...) plus a free-form Context map
for diagnostics. Internal failures keep using plain fmt.Errorf wrapping; a
code is attached at the layer where the error becomes part of the contract.

Codes are matched through wrap chains:

	if errdefs.IsCode(err, errdefs.CodeWriterCASConflict) {
		// re-materialize and retry the session
	}
*/
package errdefs
