// Package contacts turns phone numbers and email addresses into names from
// the local AddressBook stores.
package contacts

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/imsg/internal/store"
)

// StoreFile is the AddressBook database file name.
const StoreFile = "AddressBook-v22.abcddb"

// phoneSuffixLen is how many trailing digits are matched. It skips country
// and trunk prefixes, which are stored inconsistently.
const phoneSuffixLen = 7

// DefaultRescan is how long a Resolver that found no usable store waits
// before looking for stores again.
const DefaultRescan = time.Minute

// Resolver searches every AddressBook store under a directory. It keeps
// no results; see Cache.
type Resolver struct {
	dir     string
	pattern glob.Glob
	log     *zap.Logger

	mu      sync.Mutex
	rescan  time.Duration
	now     func() time.Time
	scanned time.Time
	books   []*store.DB
}

// NewResolver returns a Resolver over the stores found under dir, the
// top-level one and any in Sources/ subdirectories.
func NewResolver(dir string, log *zap.Logger) (*Resolver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	q := glob.QuoteMeta(filepath.ToSlash(dir))
	pattern, err := glob.Compile("{"+q+"/"+StoreFile+","+q+"/**/"+StoreFile+"}", '/')
	if err != nil {
		return nil, err
	}
	return &Resolver{dir: dir, pattern: pattern, log: log, rescan: DefaultRescan, now: time.Now}, nil
}

// SetRescan changes how often discovery is retried while no store is open.
func (r *Resolver) SetRescan(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescan = d
}

// Discover lists the store files under the directory. A missing directory
// yields no stores.
func (r *Resolver) Discover() ([]string, error) {
	var found []string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == r.dir {
				return err
			}
			return nil
		}
		if !d.IsDir() && r.pattern.Match(filepath.ToSlash(path)) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return found, nil
}

// stores opens the discovered stores once at least one of them opens.
// Until then discovery runs again every rescan interval, so a store that
// appears or becomes readable later is picked up.
func (r *Resolver) stores(ctx context.Context) []*store.DB {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.books) > 0 {
		return r.books
	}
	if !r.scanned.IsZero() && r.now().Sub(r.scanned) < r.rescan {
		return nil
	}

	paths, err := r.Discover()
	if err != nil {
		r.log.Warn("address book discovery failed", zap.String("dir", r.dir), zap.Error(err))
		r.scanned = r.now()
		return nil
	}
	for _, p := range paths {
		db, err := store.OpenAddressBook(ctx, p)
		if err != nil {
			r.log.Warn("skipping address book", zap.String("path", p), zap.Error(err))
			continue
		}
		r.books = append(r.books, db)
	}
	// A canceled caller says nothing about the stores; try again next time.
	if ctx.Err() == nil {
		r.scanned = r.now()
	}
	r.log.Info("address books opened", zap.Int("count", len(r.books)))
	return r.books
}

// Lookup searches all stores in parallel and returns the first name found.
// Store errors count as misses.
func (r *Resolver) Lookup(ctx context.Context, id string) (string, bool) {
	books := r.stores(ctx)
	if len(books) == 0 || id == "" {
		return "", false
	}
	key, email := SearchKey(id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var (
		once sync.Once
		name string
	)
	for _, db := range books {
		g.Go(func() error {
			var (
				n   string
				ok  bool
				err error
			)
			if email {
				n, ok, err = db.NameByEmail(gctx, key)
			} else {
				n, ok, err = db.NameByPhoneSuffix(gctx, key)
			}
			if err != nil {
				if gctx.Err() == nil {
					r.log.Debug("address book lookup failed", zap.String("path", db.Path()), zap.Error(err))
				}
				return nil
			}
			if ok {
				once.Do(func() {
					name = n
					cancel()
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	return name, name != ""
}

// Close releases every opened store.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, db := range r.books {
		_ = db.Close()
	}
	r.books = nil
	r.scanned = time.Time{}
	return nil
}

// SearchKey returns the value to search for and whether it is an email.
// Phone-like ids are reduced to their trailing digits; ids with no digits
// are searched as given.
func SearchKey(id string) (string, bool) {
	if strings.Index(id, "@") > 0 {
		return id, true
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, id)
	if digits == "" {
		return id, false
	}
	if len(digits) > phoneSuffixLen {
		digits = digits[len(digits)-phoneSuffixLen:]
	}
	return digits, false
}

// LooksResolvable reports whether id could be in an address book: a phone
// number or an email address.
func LooksResolvable(id string) bool {
	if strings.Index(id, "@") > 0 {
		return true
	}
	for _, r := range id {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return strings.ContainsFunc(id, unicode.IsDigit)
}
