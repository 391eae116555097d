//go:build !unix

package remediate

import "os"

func openNoFollow(p string) (*os.File, error) {
	return os.Open(p)
}
