package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/gagliardetto/solana-go"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var ErrInvalidPattern = errors.New("pattern contains characters outside the base58 alphabet")

// KeygenOptions constrains the address of a generated signer. With no
// prefix or suffix the first random key is returned.
type KeygenOptions struct {
	Prefix          string
	Suffix          string
	Workers         int // defaults to NumCPU
	CaseInsensitive bool
}

// KeygenStats describes how a key was found.
type KeygenStats struct {
	Attempts uint64
	Duration time.Duration
}

// Generate searches for a key whose address matches opts. The search stops
// when ctx is done.
func Generate(ctx context.Context, opts KeygenOptions) (Local, KeygenStats, error) {
	prefix, suffix := opts.Prefix, opts.Suffix
	if !inAlphabet(prefix, opts.CaseInsensitive) || !inAlphabet(suffix, opts.CaseInsensitive) {
		return Local{}, KeygenStats{}, ErrInvalidPattern
	}
	if opts.CaseInsensitive {
		prefix = strings.ToLower(prefix)
		suffix = strings.ToLower(suffix)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		found    atomic.Bool
		attempts atomic.Uint64
		result   solana.PrivateKey
		once     sync.Once
		wg       sync.WaitGroup
	)
	start := time.Now()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !found.Load() {
				if ctx.Err() != nil {
					return
				}
				key, err := solana.NewRandomPrivateKey()
				if err != nil {
					continue
				}
				attempts.Add(1)

				addr := key.PublicKey().String()
				if opts.CaseInsensitive {
					addr = strings.ToLower(addr)
				}
				if strings.HasPrefix(addr, prefix) && strings.HasSuffix(addr, suffix) {
					once.Do(func() {
						result = key
						found.Store(true)
					})
					return
				}
			}
		}()
	}
	wg.Wait()

	stats := KeygenStats{Attempts: attempts.Load(), Duration: time.Since(start)}
	if result == nil {
		return Local{}, stats, fmt.Errorf("keygen stopped after %d attempts: %w", stats.Attempts, ctx.Err())
	}
	return Local{key: result}, stats, nil
}

// EstimateAttempts is the expected number of keys tried for a pattern of
// the given total length.
func EstimateAttempts(patternLen int) uint64 {
	n := uint64(1)
	for i := 0; i < patternLen; i++ {
		n *= uint64(len(base58Alphabet))
	}
	return n
}

// WriteKeygenFile stores l as a solana-keygen JSON array readable only by
// the owner. Existing files are not overwritten.
func WriteKeygenFile(path string, l Local) error {
	ints := make([]int, len(l.key))
	for i, b := range l.key {
		ints[i] = int(b)
	}
	bz, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create keypair file: %w", err)
	}
	if _, err := f.Write(bz); err != nil {
		_ = f.Close()
		return fmt.Errorf("write keypair file: %w", err)
	}
	return f.Close()
}

func inAlphabet(s string, caseInsensitive bool) bool {
	for _, c := range s {
		if strings.ContainsRune(base58Alphabet, c) {
			continue
		}
		// 'l', 'I' and 'O' still match their other case
		if caseInsensitive && (strings.ContainsRune(base58Alphabet, unicode.ToUpper(c)) || strings.ContainsRune(base58Alphabet, unicode.ToLower(c))) {
			continue
		}
		return false
	}
	return true
}
