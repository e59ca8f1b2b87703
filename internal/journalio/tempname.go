// Package journalio names the scratch journal files VerifySession
// produces. Grounded on SPEC_FULL.md's domain-stack decision to keep
// github.com/google/uuid (dropped everywhere else in the teacher's
// stack along with the signaling/session layers it used to name) for
// exactly this purpose: a collision-free temp journal name that won't
// clash with a concurrent verify run against the same directory.
package journalio

import (
	"path/filepath"

	"github.com/google/uuid"
)

// TempJournalPath returns a path for a scratch journal under dir, named
// with a random UUID so concurrent verify runs never collide.
func TempJournalPath(dir string) string {
	return filepath.Join(dir, "verify-"+uuid.NewString()+".draftjournal")
}
