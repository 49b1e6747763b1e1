package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserTool renders a page in headless Chrome and returns its visible text.
// Used for pages whose content only exists after scripts run.
type BrowserTool struct {
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	Timeout     time.Duration
	MaxChars    int
}

func NewBrowserTool(timeout time.Duration) *BrowserTool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BrowserTool{Timeout: timeout, MaxChars: 50000}
}

func (b *BrowserTool) Name() string {
	return "browser"
}

func (b *BrowserTool) Description() string {
	return "Open a URL in a headless browser, wait for it to render, and return the visible page text. Optional selector narrows the text to one element."
}

func (b *BrowserTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The http(s) URL to render",
			},
			"selector": map[string]any{
				"type":        "string",
				"description": "CSS selector of the element to read (defaults to body)",
			},
		},
		"required": []string{"url"},
	}
}

func (b *BrowserTool) allocator() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allocCtx != nil {
		select {
		case <-b.allocCtx.Done():
			b.allocCtx = nil
		default:
			return b.allocCtx
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return b.allocCtx
}

// Close shuts the shared browser process down.
func (b *BrowserTool) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.allocCtx = nil
	b.allocCancel = nil
}

func (b *BrowserTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL      string `json:"url"`
		Selector string `json:"selector"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	target, err := parseWebURL(args.URL)
	if err != nil {
		return "", err
	}
	selector := strings.TrimSpace(args.Selector)
	if selector == "" {
		selector = "body"
	}

	tabCtx, tabCancel := chromedp.NewContext(b.allocator())
	defer tabCancel()
	runCtx, cancel := context.WithTimeout(tabCtx, b.Timeout)
	defer cancel()
	// Follow the caller's cancellation too.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var title, text string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(target.String()),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Text(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render failed for %s: %w", target, err)
	}

	return fmt.Sprintf("TITLE: %s\nSOURCE: %s\n\n-- CONTENT --\n%s",
		title, target, truncate(strings.TrimSpace(text), b.MaxChars)), nil
}
