package dynamo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/zoobzio/capitan"
)

// runCycle is the atomic swap/rollback protocol for one regeneration.
//
// Soft failures (generation, reload, health regression) are classified into
// the returned Outcome and keep the loop alive. A non-nil error means a
// filesystem fault around the artifact itself and is fatal to the engine.
// Cleanup of the temp and backup files is unconditional.
func (e *Engine) runCycle(ctx context.Context, force bool) (outcome Outcome, err error) {
	path := e.target.ConfigFile()
	capitan.Emit(ctx, CycleStarted,
		KeyPath.Field(path),
		KeyForced.Field(strconv.FormatBool(force)),
	)

	existing, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return OutcomeUnchanged, fmt.Errorf("dynamo: failed to read live config: %w", err)
		}
		existing = nil
		err = nil
	}
	oldHash := contentHash(existing)
	e.before(force, oldHash, existing)

	e.metrics.OnGenerationAttempt()

	var (
		newHash    string
		different  bool
		cycled     bool
		tempPath   string
		backupPath string
	)

	defer func() {
		removeIfExists(tempPath)
		removeIfExists(backupPath)
		if err != nil {
			return
		}
		e.after(force, different, cycled, newHash)
		e.metrics.OnLastGeneration(e.clock.Now())
		if info, serr := os.Stat(path); serr == nil {
			e.metrics.OnLastChange(info.ModTime())
		}
		e.setOutcome(outcome)
		if outcome != OutcomeUnchanged {
			e.metrics.OnOutcome(outcome)
		}
		capitan.Emit(ctx, CycleCompleted,
			KeyOutcome.Field(outcome.String()),
			KeyHash.Field(newHash),
			KeyForced.Field(strconv.FormatBool(force)),
		)
	}()

	data, genErr := e.generate(ctx)
	if genErr != nil {
		// Soft failure: no write, no reload, live config untouched.
		return OutcomeUnchanged, nil
	}
	newHash = contentHash(data)

	// The temp file must live in the artifact's directory so the rename
	// below stays on one filesystem and is atomic.
	tempPath, err = writeTemp(path, data)
	if err != nil {
		return OutcomeUnchanged, err
	}
	if existing != nil {
		if err = copyFileMeta(path, tempPath, e.logger); err != nil {
			return OutcomeUnchanged, err
		}
	}

	different = !bytes.Equal(existing, data)
	if !force && !different {
		return OutcomeUnchanged, nil
	}

	// Atomic cycle: back up, swap, probe, reload.
	if existing != nil {
		backupPath = tempPath + ".bak"
		if err = copyFile(path, backupPath); err != nil {
			return OutcomeUnchanged, fmt.Errorf("dynamo: failed to back up live config: %w", err)
		}
	}
	if err = os.Rename(tempPath, path); err != nil {
		return OutcomeUnchanged, fmt.Errorf("dynamo: failed to swap config into place: %w", err)
	}
	tempPath = ""
	cycled = true

	capitan.Emit(ctx, ConfigCycled,
		KeyPath.Field(path),
		KeyHash.Field(newHash),
		KeyOldHash.Field(oldHash),
	)
	e.logger.Info("config cycled", "path", path, "old_hash", oldHash, "hash", newHash)

	preOK := e.checkHealth()

	if relErr := e.target.ReloadServer(ctx); relErr != nil {
		e.setError(relErr)
		capitan.Emit(ctx, ReloadFailed,
			KeyError.Field(relErr.Error()),
			KeyHash.Field(newHash),
		)
		e.logger.Error("server reload failed",
			"error", relErr, "hash", newHash, "pre_healthy", preOK)
		if preOK {
			if err = e.restore(ctx, &backupPath, path); err != nil {
				return OutcomeUnchanged, err
			}
		}
		return OutcomeReloadFailure, nil
	}

	if e.checkHealth() {
		return OutcomeSuccess, nil
	}

	if preOK {
		// Healthy before, unhealthy after: a regression. Restore the old
		// config and put the server back on it. The classification stands
		// even if the second reload fails.
		if err = e.restore(ctx, &backupPath, path); err != nil {
			return OutcomeUnchanged, err
		}
		if relErr := e.target.ReloadServer(ctx); relErr != nil {
			e.logger.Error("reload of restored config failed", "error", relErr)
		}
		return OutcomeBadConfigRolledBack, nil
	}

	// Unhealthy before and after: no regression to protect. Keep the new
	// bytes on disk to aid debugging and bootstrap.
	e.logger.Warn("server unhealthy before and after cycle; keeping new config",
		"path", path, "hash", newHash)
	return OutcomeEverythingIsAwful, nil
}

// checkHealth probes the target and mirrors the result to metrics.
func (e *Engine) checkHealth() bool {
	ok := e.health()
	e.metrics.OnConfigHealth(ok)
	return ok
}

// restore renames the backup copy back onto the live path and clears the
// backup so cleanup does not remove the now-live file.
func (e *Engine) restore(ctx context.Context, backupPath *string, path string) error {
	if *backupPath == "" {
		return nil
	}
	if err := os.Rename(*backupPath, path); err != nil {
		return fmt.Errorf("dynamo: failed to restore previous config: %w", err)
	}
	*backupPath = ""
	capitan.Emit(ctx, ConfigRolledBack,
		KeyPath.Field(path),
	)
	e.logger.Warn("previous config restored", "path", path)
	return nil
}

// contentHash returns the hex SHA-256 of data, or "" when the artifact is
// absent (nil bytes).
func contentHash(data []byte) string {
	if data == nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeTemp writes data to a fresh temp file next to path and returns the
// temp file's name.
func writeTemp(path string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return "", fmt.Errorf("dynamo: failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("dynamo: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("dynamo: failed to close temp file: %w", err)
	}
	return tmp.Name(), nil
}

// writeFileAtomic writes data to path via a same-directory temp file and an
// atomic rename, so readers never observe a partial artifact.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tempPath, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// copyFileMeta carries src's permission bits and ownership onto dst.
// Ownership changes need privilege; failures there are logged, not fatal.
func copyFileMeta(src, dst string, logger *slog.Logger) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("dynamo: failed to stat %s: %w", src, err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("dynamo: failed to chmod %s: %w", dst, err)
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		if err := os.Chown(dst, int(st.Uid), int(st.Gid)); err != nil {
			logger.Debug("could not carry over file ownership", "path", dst, "error", err)
		}
	}
	return nil
}

// copyFile copies src to dst, preserving src's permission bits.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// removeIfExists deletes path when set, ignoring absence.
func removeIfExists(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path) //nolint:errcheck // Best-effort cleanup
}
