package twitter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"birdwatch/internal/models"
)

const (
	baseURL  = "https://twitter.com"
	loginURL = baseURL + "/i/flow/login"

	stealthUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultReadsPerMinute  = 12
	defaultWritesPerMinute = 4
)

// Credentials holds what the login flow needs.
type Credentials struct {
	Email    string
	Password string
	Account  string // @handle, asked for when Twitter wants extra verification
}

// Browser drives a headless Chrome session against Twitter. It is both the
// content source (FetchRecent/FetchOne) and the action executor (Reply/Post)
// of the agent. Scraping-based access: selectors are best effort and every
// navigation is rate limited.
type Browser struct {
	creds    Credentials
	headless bool
	limiter  *RateLimiter

	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	browserCtx  context.Context
}

// NewBrowser creates an unstarted browser session.
func NewBrowser(creds Credentials, headless bool) *Browser {
	return &Browser{
		creds:    creds,
		headless: headless,
		limiter:  NewRateLimiter(defaultReadsPerMinute, defaultWritesPerMinute),
	}
}

// Start launches Chrome.
func (b *Browser) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(stealthUA),
		chromedp.WindowSize(1280, 800),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "en-US,en;q=0.9",
		}),
	); err != nil {
		ctxCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	b.allocCancel = allocCancel
	b.ctxCancel = ctxCancel
	b.browserCtx = browserCtx

	log.Println("[BROWSER] Chrome started")
	return nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	if b.ctxCancel != nil {
		b.ctxCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// Login walks the interactive login flow: email, optional account-name
// verification, password. Returns ErrAuthExpired when Twitter refuses the
// session so the scheduler halts instead of spinning.
func (b *Browser) Login(ctx context.Context) error {
	log.Println("[BROWSER] Logging in...")

	runCtx, cancel := b.tabContext(ctx, 90*time.Second)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`input[autocomplete="username"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[autocomplete="username"]`, b.creds.Email, chromedp.ByQuery),
		chromedp.SendKeys(`input[autocomplete="username"]`, "\r", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("login email step: %w", classify(err))
	}

	// Twitter sometimes interposes a "confirm your handle" challenge before
	// the password field.
	var challenged bool
	_ = chromedp.Run(runCtx, chromedp.Evaluate(
		`!!document.querySelector('input[data-testid="ocfEnterTextTextInput"]')`, &challenged))
	if challenged {
		if b.creds.Account == "" {
			return fmt.Errorf("verification challenge without TWITTER_ACCOUNT set: %w", models.ErrAuthExpired)
		}
		err = chromedp.Run(runCtx,
			chromedp.SendKeys(`input[data-testid="ocfEnterTextTextInput"]`, b.creds.Account, chromedp.ByQuery),
			chromedp.SendKeys(`input[data-testid="ocfEnterTextTextInput"]`, "\r", chromedp.ByQuery),
			chromedp.Sleep(2*time.Second),
		)
		if err != nil {
			return fmt.Errorf("login verification step: %w", classify(err))
		}
	}

	err = chromedp.Run(runCtx,
		chromedp.WaitVisible(`input[name="password"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, b.creds.Password, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, "\r", chromedp.ByQuery),
		chromedp.WaitVisible(`[data-testid="primaryColumn"]`, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("login password step: %w", models.ErrAuthExpired)
	}

	log.Println("[BROWSER] Logged in")
	return nil
}

// extractTweetsJS pulls structured tweet data out of the rendered timeline.
// Engagement counters come from the buttons' aria-labels, which carry the
// exact counts even when the visible text abbreviates them.
const extractTweetsJS = `
Array.from(document.querySelectorAll('article[data-testid="tweet"]')).map(article => {
	const getText = (sel) => {
		const el = article.querySelector(sel);
		return el ? el.innerText : '';
	};
	const getCount = (sel) => {
		const el = article.querySelector(sel);
		if (!el) return 0;
		const label = el.getAttribute('aria-label') || '';
		const m = label.match(/^(\d+)/);
		return m ? parseInt(m[1], 10) : 0;
	};
	const url = article.querySelector('a[href*="/status/"]');
	const href = url ? url.getAttribute('href') : '';
	const id = href ? href.split('/status/').pop().split(/[?/]/)[0] : '';
	const authorText = getText('[data-testid="User-Name"]');
	const timeEl = article.querySelector('time');
	return {
		id: id,
		text: getText('[data-testid="tweetText"]'),
		author: authorText ? authorText.split('\n')[0].trim() : '',
		metrics: {
			likes: getCount('[data-testid="like"]'),
			retweets: getCount('[data-testid="retweet"]'),
			replies: getCount('[data-testid="reply"]')
		},
		created_at: timeEl && timeEl.getAttribute('datetime')
			? timeEl.getAttribute('datetime') : new Date().toISOString()
	};
}).filter(t => t.id && t.text)`

// FetchRecent scrapes up to limit tweets from the home timeline.
func (b *Browser) FetchRecent(ctx context.Context, limit int) ([]models.RawItem, error) {
	if err := b.limiter.WaitRead(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := b.tabContext(ctx, 60*time.Second)
	defer cancel()

	var raw []models.RawItem
	err := chromedp.Run(runCtx,
		chromedp.Navigate(baseURL+"/home"),
		chromedp.WaitVisible(`article[data-testid="tweet"]`, chromedp.ByQuery),
		// Scroll a few times so the virtualized timeline renders enough rows.
		chromedp.Evaluate(`window.scrollBy({top: 300, behavior: 'smooth'})`, nil),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`window.scrollBy({top: 300, behavior: 'smooth'})`, nil),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(extractTweetsJS, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline: %w", classify(err))
	}

	if limit >= 0 && len(raw) > limit {
		raw = raw[:limit]
	}
	log.Printf("[BROWSER] Fetched %d tweets from timeline", len(raw))
	return raw, nil
}

// FetchOne loads a single tweet by id, used by the engagement refresh cycle.
func (b *Browser) FetchOne(ctx context.Context, id string) (models.RawItem, error) {
	if err := b.limiter.WaitRead(ctx); err != nil {
		return models.RawItem{}, err
	}

	runCtx, cancel := b.tabContext(ctx, 45*time.Second)
	defer cancel()

	var raw []models.RawItem
	err := chromedp.Run(runCtx,
		chromedp.Navigate(fmt.Sprintf("%s/i/status/%s", baseURL, id)),
		chromedp.WaitVisible(`article[data-testid="tweet"]`, chromedp.ByQuery),
		chromedp.Evaluate(extractTweetsJS, &raw),
	)
	if err != nil {
		return models.RawItem{}, fmt.Errorf("fetch tweet %s: %w", id, classify(err))
	}

	for _, item := range raw {
		if item.ID == id {
			return item, nil
		}
	}
	return models.RawItem{}, fmt.Errorf("tweet %s: %w", id, models.ErrNotFound)
}

// Reply posts text as a reply to the given tweet.
func (b *Browser) Reply(ctx context.Context, itemID, text string) (models.ActionResult, error) {
	if err := b.limiter.WaitWrite(ctx); err != nil {
		return models.ActionResult{}, err
	}

	runCtx, cancel := b.tabContext(ctx, 60*time.Second)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(fmt.Sprintf("%s/i/status/%s", baseURL, itemID)),
		chromedp.WaitVisible(`[data-testid="reply"]`, chromedp.ByQuery),
		chromedp.Click(`[data-testid="reply"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`[data-testid="tweetTextarea_0"]`, chromedp.ByQuery),
		chromedp.SendKeys(`[data-testid="tweetTextarea_0"]`, text, chromedp.ByQuery),
		chromedp.Click(`[data-testid="tweetButton"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`[data-testid="toast"]`, chromedp.ByQuery),
	)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("reply to %s: %w", itemID, classify(err))
	}

	log.Printf("[BROWSER] Replied to tweet %s", itemID)
	return models.ActionResult{Success: true}, nil
}

// Post publishes text as a standalone tweet via the compose page.
func (b *Browser) Post(ctx context.Context, text string) (models.ActionResult, error) {
	if err := b.limiter.WaitWrite(ctx); err != nil {
		return models.ActionResult{}, err
	}

	runCtx, cancel := b.tabContext(ctx, 60*time.Second)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(baseURL+"/compose/tweet"),
		chromedp.WaitVisible(`[data-testid="tweetTextarea_0"]`, chromedp.ByQuery),
		chromedp.SendKeys(`[data-testid="tweetTextarea_0"]`, text, chromedp.ByQuery),
		chromedp.Click(`[data-testid="tweetButton"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`[data-testid="toast"]`, chromedp.ByQuery),
	)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("post tweet: %w", classify(err))
	}

	log.Println("[BROWSER] Posted tweet")
	return models.ActionResult{Success: true}, nil
}

// tabContext derives a deadline-bound context on the browser session. The
// returned context dies with either the caller's ctx or the browser.
func (b *Browser) tabContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(b.browserCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// classify maps chromedp failures onto the shared error taxonomy. A timed-out
// wait usually means the page did not render what we expected: treated as
// transient, except when we got bounced to the login flow.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, models.ErrTransient)
	}
	if strings.Contains(err.Error(), "net::ERR") {
		return fmt.Errorf("%v: %w", err, models.ErrTransient)
	}
	return err
}
