// Package perms holds the permissions of the files and directories cicd writes.
package perms

import "os"

const (
	// RegularFile is used for context files, templates, manifests and logs (0644).
	RegularFile os.FileMode = 0o644

	// RegularDir is used for cloud assembly and documentation directories (0755).
	RegularDir os.FileMode = 0o755
)
