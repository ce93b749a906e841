package certificate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fawz-io/kcmanage/internal/ports"
)

// targetFile records, inside each backup, the live directory the material
// came from so a restore knows where to put it back.
const targetFile = "target"

// backup copies the live material into a new timestamped backup directory
// and prunes the oldest backups beyond max. Returns the backup path.
func (s *Step) backup(m certMaterial, max int) (string, error) {
	id := strings.SplitN(uuid.NewString(), "-", 2)[0]
	name := fmt.Sprintf("%d-%s", s.now().Unix(), id)
	dir := filepath.Join(s.backupDir, name)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	for _, src := range []string{m.fullchain, m.privkey} {
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(filepath.Join(dir, targetFile), []byte(m.dir), 0o600); err != nil {
		return "", err
	}

	if err := s.prune(max); err != nil {
		return "", err
	}
	return dir, nil
}

// prune deletes the oldest backups until at most max remain. Backup names
// start with a unix timestamp, so lexicographic order is creation order.
func (s *Step) prune(max int) error {
	names, err := s.backupNames()
	if err != nil {
		return err
	}

	for len(names) > max {
		oldest := names[0]
		if err := os.RemoveAll(filepath.Join(s.backupDir, oldest)); err != nil {
			return err
		}
		s.logger.Debug("pruned certificate backup", ports.F("backup", oldest))
		names = names[1:]
	}
	return nil
}

// restoreLatest copies the newest backup's material back over its recorded
// live directory. No backups is not an error: there is nothing to undo.
func (s *Step) restoreLatest() error {
	names, err := s.backupNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}

	dir := filepath.Join(s.backupDir, names[len(names)-1])
	target, err := os.ReadFile(filepath.Join(dir, targetFile))
	if err != nil {
		return fmt.Errorf("backup %s has no target record: %w", dir, err)
	}

	liveDir := strings.TrimSpace(string(target))
	if err := os.MkdirAll(liveDir, 0o700); err != nil {
		return err
	}
	for _, name := range []string{"fullchain.pem", "privkey.pem"} {
		if err := copyFile(filepath.Join(dir, name), filepath.Join(liveDir, name)); err != nil {
			return err
		}
	}

	s.logger.Info("restored certificate backup", ports.F("backup", names[len(names)-1]))
	return nil
}

func (s *Step) backupNames() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}
