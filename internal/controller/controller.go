// Package controller drives the web client: it reacts to route changes and user
// intents, keeps the mailbox cache in sync with the server, and tells the
// renderer what to paint.
//
// All controller state lives on a single event loop (Run). Public methods only
// enqueue work; gateway calls run on their own goroutines and post their
// continuations back onto the loop.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vdavid/vmail/webclient/internal/gateway"
	"github.com/vdavid/vmail/webclient/internal/mailbox"
	"github.com/vdavid/vmail/webclient/internal/models"
	"github.com/vdavid/vmail/webclient/internal/route"
)

// DefaultPageSize is the number of messages on one list page.
const DefaultPageSize = 10

const eventQueueSize = 64

// Options configures a Controller.
type Options struct {
	// PageSize is the number of messages per list page (default DefaultPageSize).
	PageSize int
	// Account is the address used as the sender of locally cached sent messages and drafts.
	Account string
}

// Controller is the route-change and intent orchestrator.
type Controller struct {
	cache    *mailbox.Cache
	gateway  gateway.Gateway
	renderer Renderer
	pageSize int
	account  string

	events chan func()
	done   chan struct{}

	// Loop-owned state.
	ctx           context.Context
	current       route.Route
	hasRoute      bool
	generation    uint64
	populated     bool
	resyncPending bool
	// unconfirmed holds folder -> ids of messages moved locally. The server
	// gave them new ids, so intents on them wait for the next fetch.
	unconfirmed map[string]map[string]struct{}
	// inFlight counts gateway calls whose continuation has not run yet.
	inFlight int
	settled  []chan struct{}

	now   func() time.Time
	newID func() string
}

// New creates a controller with an empty cache. Call Run to start processing.
func New(gw gateway.Gateway, renderer Renderer, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Controller{
		cache:    mailbox.NewCache(),
		gateway:  gw,
		renderer: renderer,
		pageSize: opts.PageSize,
		account:  opts.Account,
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		now:      time.Now,
		newID: func() string {
			return "local-" + uuid.NewString()
		},
	}
}

// Cache returns the controller's cache for read-only use by views.
func (c *Controller) Cache() *mailbox.Cache {
	return c.cache
}

// Run processes events until ctx is canceled. In-flight gateway calls are
// canceled when Run returns.
func (c *Controller) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(c.done)
	c.ctx = ctx

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.events:
			fn()
			c.releaseSettled()
		}
	}
}

// post enqueues fn on the event loop. It drops fn once the loop has stopped.
func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// Settle blocks until no gateway call is in flight and no event is queued,
// or until ctx is canceled or the loop stops.
func (c *Controller) Settle(ctx context.Context) error {
	ch := make(chan struct{})
	c.post(func() { c.settled = append(c.settled, ch) })

	select {
	case <-ch:
		return nil
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) releaseSettled() {
	if len(c.settled) == 0 || c.inFlight > 0 || len(c.events) > 0 {
		return
	}
	for _, ch := range c.settled {
		close(ch)
	}
	c.settled = nil
}

// Navigate handles a route change to fragment.
func (c *Controller) Navigate(fragment string) {
	c.post(func() { c.navigate(fragment) })
}

// Resync refetches the whole mailbox and repaints the current view.
func (c *Controller) Resync() {
	c.post(func() {
		c.resyncPending = true
		if c.hasRoute {
			c.fetch()
		}
	})
}

// ReportError shows err from outside the loop, such as a malformed command, on the view.
func (c *Controller) ReportError(err error) {
	c.post(func() { c.renderer.RenderError(err) })
}

func (c *Controller) navigate(fragment string) {
	canonical := route.Normalize(fragment)
	if canonical != fragment {
		c.redirect(route.Parse(canonical))
		return
	}

	c.current = route.Parse(canonical)
	c.hasRoute = true
	c.generation++
	c.enter()
}

// redirect points the location at r and handles it as a new route change.
func (c *Controller) redirect(r route.Route) {
	c.renderer.Redirect(r.String())
	c.navigate(r.String())
}

// enter paints the current route from the cache and fetches when the cache
// was never filled or a resync is due.
func (c *Controller) enter() {
	if c.populated {
		c.render()
	}
	if !c.populated || c.resyncPending {
		c.fetch()
	}
}

// fetch asks the gateway for the whole mailbox. The response is applied only
// if no navigation happened in the meantime.
func (c *Controller) fetch() {
	generation := c.generation
	folder := c.current.Folder
	ctx := c.ctx

	c.inFlight++
	go func() {
		snapshot, err := c.gateway.FetchAll(ctx)
		c.post(func() {
			c.inFlight--
			c.fetched(generation, folder, snapshot, err)
		})
	}()
}

func (c *Controller) fetched(generation uint64, folder string, snapshot models.Snapshot, err error) {
	if generation != c.generation {
		log.Printf("Controller: Discarding stale mailbox response requested for folder %s", folder)
		return
	}
	if err != nil {
		c.fail("fetch the mailbox", err)
		return
	}

	c.cache.ReplaceAll(snapshot)
	c.populated = true
	c.resyncPending = false
	c.unconfirmed = nil
	c.render()
}

// render paints the current route from the cache.
func (c *Controller) render() {
	r := c.current

	if !c.cache.FolderExists(r.Folder) {
		log.Printf("Controller: Unknown folder %s, redirecting to inbox", r.Folder)
		c.redirect(route.InFolder(models.FolderInbox))
		return
	}

	c.renderer.RenderFolders(append([]string{}, models.SystemFolders...), c.cache.UserFolders(), r.Folder)

	switch KindOf(r) {
	case ListView:
		c.renderer.RenderMessageList(c.listPage(r))
	case MessageView:
		c.renderer.RenderMessageList(c.listPage(r))
		msg, err := c.cache.Get(r.Folder, r.MessageID)
		if err != nil {
			c.fail("open the message", err)
			return
		}
		c.renderer.RenderMessage(r.Folder, msg)
	case ComposeView:
		c.renderer.RenderCompose(r.Folder, nil)
	case DraftView:
		draft, err := c.cache.Get(models.FolderDrafts, r.DraftID)
		if err != nil {
			c.fail("open the draft", err)
			return
		}
		c.renderer.RenderCompose(r.Folder, &draft)
	}
}

func (c *Controller) listPage(r route.Route) ListPage {
	all := c.cache.SortedByDate(r.Folder)

	page := ListPage{
		Folder:    r.Folder,
		Page:      r.Page,
		PageIndex: r.PageIndex(),
		PageCount: (len(all) + c.pageSize - 1) / c.pageSize,
		Total:     len(all),
		Selected:  r.MessageID,
		Messages:  []models.Message{},
	}
	if page.PageCount == 0 {
		page.PageCount = 1
	}

	start := page.PageIndex * c.pageSize
	if page.PageIndex < page.PageCount && start < len(all) {
		end := min(start+c.pageSize, len(all))
		page.Messages = all[start:end]
	}
	return page
}

// fail logs err and reports it to the view.
func (c *Controller) fail(action string, err error) {
	log.Printf("Controller: Failed to %s: %v", action, err)

	var remoteErr *gateway.RemoteError
	if errors.As(err, &remoteErr) {
		c.renderer.RenderError(fmt.Errorf("the server could not %s: %w", action, err))
		return
	}
	c.renderer.RenderError(fmt.Errorf("failed to %s: %w", action, err))
}
