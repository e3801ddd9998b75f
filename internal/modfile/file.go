// Package modfile reads and writes module files: a msgpack payload holding
// the declaration tree and method bodies, plus an optional cbor symbols
// sidecar.
package modfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"insider/internal/meta"
)

// SymbolsExt is appended to a module path to name its symbols sidecar.
const SymbolsExt = ".isym"

func parseMVID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// Decode reads a module payload from r.
func Decode(r io.Reader) (*meta.Module, error) {
	var p filePayload
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return fromPayload(&p)
}

// Encode writes mod to w without changing its MVID.
func Encode(w io.Writer, mod *meta.Module) error {
	p, err := toPayload(mod, mod.MVID.String())
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(p)
}

// Load opens the module at path. The file stays open until the module is
// closed; resolver answers references to types in other modules.
func Load(path string, resolver meta.Resolver) (*meta.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modfile: load %s: %w", path, err)
	}
	mod, err := Decode(bufio.NewReader(f))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("modfile: load %s: %w", path, err)
	}
	mod.Path = path
	mod.SetResolver(resolver)
	mod.Attach(f)
	return mod, nil
}

// LoadAll loads paths concurrently and returns the modules in input order.
// On failure every module already loaded is closed.
func LoadAll(ctx context.Context, paths []string, resolver meta.Resolver, jobs int) ([]*meta.Module, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// indexes are unique per goroutine, so no mutex is needed
	mods := make([]*meta.Module, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mod, err := Load(path, resolver)
			if err != nil {
				return err
			}
			mods[i] = mod
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, m := range mods {
			_ = m.Close()
		}
		return nil, err
	}
	return mods, nil
}

// Write serializes mod to path with a fresh MVID. The payload goes to a
// temporary file in the target directory that is renamed over path, so path
// is untouched when any step fails.
func Write(mod *meta.Module, path string) (err error) {
	mvid := uuid.New()
	p, err := toPayload(mod, mvid.String())
	if err != nil {
		return fmt.Errorf("modfile: %w %s: %w", ErrEncode, mod.Name, err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".insider-*")
	if err != nil {
		return fmt.Errorf("modfile: write %s: %w", path, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriter(f)
	if err = msgpack.NewEncoder(bw).Encode(p); err != nil {
		return fmt.Errorf("modfile: write %s: %w", path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("modfile: write %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("modfile: write %s: %w", path, err)
	}
	// CreateTemp uses 0600; keep the mode of the file being replaced
	mode := os.FileMode(0o644)
	if fi, statErr := os.Stat(path); statErr == nil {
		mode = fi.Mode().Perm()
	}
	if err = os.Chmod(tmp, mode); err != nil {
		return fmt.Errorf("modfile: write %s: %w", path, err)
	}
	// atomic replace
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("modfile: write %s: %w", path, err)
	}
	mod.MVID = mvid
	return nil
}

// LoadSymbols reads the symbols sidecar next to the module file. Missing or
// unreadable symbols are not an error; it reports whether symbols were
// attached.
func LoadSymbols(mod *meta.Module) bool {
	if mod == nil || mod.Path == "" {
		return false
	}
	data, err := os.ReadFile(mod.Path + SymbolsExt)
	if err != nil {
		return false
	}
	var sym meta.Symbols
	if err := cbor.Unmarshal(data, &sym); err != nil {
		return false
	}
	mod.Symbols = &sym
	return true
}

// WriteSymbols writes the symbols of mod next to path. Modules without
// symbols write nothing.
func WriteSymbols(mod *meta.Module, path string) error {
	if mod.Symbols == nil {
		return nil
	}
	data, err := cbor.Marshal(mod.Symbols)
	if err != nil {
		return fmt.Errorf("modfile: symbols %s: %w", path, err)
	}
	if err := os.WriteFile(path+SymbolsExt, data, 0o644); err != nil {
		return fmt.Errorf("modfile: symbols %s: %w", path, err)
	}
	return nil
}
