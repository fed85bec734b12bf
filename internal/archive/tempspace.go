package archive

import (
	"fmt"

	"golang.org/x/sys/unix"

	"romcurator/internal/faults"
)

// ensureTempSpace verifies that extracting needed bytes stays within the
// configured ceiling and fits the temp filesystem's free space.
func ensureTempSpace(tempDir string, needed, ceiling int64) error {
	if ceiling > 0 && needed > ceiling {
		return faults.Wrap(faults.ErrContent, "expand", "preflight",
			fmt.Sprintf("extraction needs %d bytes, ceiling is %d", needed, ceiling), nil)
	}
	var st unix.Statfs_t
	if err := unix.Statfs(tempDir, &st); err != nil {
		return faults.Wrap(faults.ErrTransient, "expand", "preflight", "statfs temp dir", err)
	}
	avail := int64(st.Bavail) * int64(st.Bsize)
	if needed > 0 && avail < needed {
		return faults.Wrap(faults.ErrTransient, "expand", "preflight",
			fmt.Sprintf("temp dir has %d bytes free, need %d", avail, needed), nil)
	}
	return nil
}
