package scoring

import (
	"bufio"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// defaultKeywords seed the keyword criterion when no keywords file is
// configured. Tracked tokens and tickers the agent cares about.
var defaultKeywords = []string{
	"BTC", "ETH", "SOL", "BNB", "DOGE", "PEPE",
	"defi", "nft", "web3", "airdrop", "staking",
}

var wordSplit = regexp.MustCompile(`[^\w$]+`)

// KeywordList holds the tracked tokens/tickers used for the keyword-mention
// sub-score. Safe for concurrent use; supports hot-reload from a file.
type KeywordList struct {
	mu       sync.RWMutex
	keywords map[string]struct{}
	path     string
	watcher  *fsnotify.Watcher
}

// NewKeywordList returns a list seeded with the built-in defaults.
func NewKeywordList() *KeywordList {
	kl := &KeywordList{keywords: make(map[string]struct{})}
	kl.replace(defaultKeywords)
	return kl
}

// LoadFile replaces the list with the contents of path: one keyword per
// line, blank lines and #-comments ignored.
func (kl *KeywordList) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var keywords []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	kl.replace(keywords)
	kl.path = path
	log.Printf("[KEYWORDS] Loaded %d keywords from %s", len(keywords), path)
	return nil
}

// Watch reloads the list whenever the backing file changes. Call Close to
// stop watching.
func (kl *KeywordList) Watch() error {
	if kl.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(kl.path); err != nil {
		watcher.Close()
		return err
	}
	kl.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := kl.LoadFile(kl.path); err != nil {
					log.Printf("[KEYWORDS] Reload failed: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[KEYWORDS] Watcher error: %v", err)
			}
		}
	}()

	return nil
}

// Close stops the file watcher, if any.
func (kl *KeywordList) Close() error {
	if kl.watcher != nil {
		return kl.watcher.Close()
	}
	return nil
}

// Match returns the keyword-mention sub-score of text in [0,1]: 0 for no
// tracked keyword, 0.5 for one distinct match, 1 for two or more. Matching is
// case-insensitive on whole words, with any $ prefix stripped ($eth == ETH).
func (kl *KeywordList) Match(text string) float64 {
	kl.mu.RLock()
	defer kl.mu.RUnlock()

	if len(kl.keywords) == 0 {
		return 0
	}

	seen := make(map[string]struct{})
	for _, word := range wordSplit.Split(text, -1) {
		word = strings.ToUpper(strings.TrimPrefix(word, "$"))
		if word == "" {
			continue
		}
		if _, ok := kl.keywords[word]; ok {
			seen[word] = struct{}{}
		}
	}

	switch len(seen) {
	case 0:
		return 0
	case 1:
		return 0.5
	default:
		return 1
	}
}

// Len returns the number of tracked keywords.
func (kl *KeywordList) Len() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.keywords)
}

func (kl *KeywordList) replace(keywords []string) {
	next := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(kw), "$"))
		if kw != "" {
			next[kw] = struct{}{}
		}
	}

	kl.mu.Lock()
	kl.keywords = next
	kl.mu.Unlock()
}
