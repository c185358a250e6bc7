// Package probe fetches the page a scenario navigates to and distills
// it into a bounded text summary. The summary grounds the intent
// extractor's selector descriptions; the engine tolerates any probe
// failure, so nothing here is load-bearing for a turn.
package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxSummaryChars = 4000

// Probe drives a headless browser to capture rendered page content.
// One browser instance is shared and lazily started; Close shuts it
// down.
type Probe struct {
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func New() *Probe {
	return &Probe{}
}

func (p *Probe) initBrowser() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browserCtx != nil {
		select {
		case <-p.browserCtx.Done():
			p.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	p.browserCtx, p.browserCancel = chromedp.NewContext(p.allocCtx)

	return chromedp.Run(p.browserCtx)
}

func (p *Probe) cleanup() {
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	p.browserCtx = nil
	p.allocCtx = nil
}

func (p *Probe) Close() {
	p.mu.Lock()
	p.cleanup()
	p.mu.Unlock()
}

// Summary navigates to the URL and returns the readable content of the
// rendered page, sanitized and truncated. ctx bounds the whole trip.
func (p *Probe) Summary(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %v", err)
	}

	if err := p.initBrowser(); err != nil {
		return "", fmt.Errorf("failed to initialize browser: %v", err)
	}

	runCtx, cancel := context.WithCancel(p.browserCtx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("page fetch failed: %v", err)
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return "", fmt.Errorf("failed to parse page content: %v", err)
	}

	sanitized := bluemonday.StrictPolicy().Sanitize(article.TextContent)

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", article.Title)
	if article.Excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", article.Excerpt)
	}
	b.WriteString("\n-- CONTENT --\n")

	content := sanitized
	if len(content) > maxSummaryChars {
		content = content[:maxSummaryChars] + "\n... (content truncated) ..."
	}
	b.WriteString(content)

	return b.String(), nil
}
