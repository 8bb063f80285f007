// Package firestore adapts Cloud Firestore collections to the feed ports.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"school_notification_bot/internal/domain/feed"

	fs "cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client is a feed.Source and feed.DocumentStore backed by Firestore.
type Client struct {
	client *fs.Client
	log    *logrus.Entry
}

// NewClient connects with the service account file at credentialsPath. An
// empty projectID is detected from the credentials.
func NewClient(ctx context.Context, projectID, credentialsPath string, log *logrus.Entry) (*Client, error) {
	if projectID == "" {
		projectID = fs.DetectProjectID
	}
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := fs.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Scan reads every document of collection.
func (c *Client) Scan(ctx context.Context, collection string) ([]feed.Document, error) {
	it := c.client.Collection(collection).Documents(ctx)
	defer it.Stop()

	var docs []feed.Document
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		docs = append(docs, toDocument(snap))
	}
	return docs, nil
}

// Subscribe listens to collection on a dedicated goroutine and hands every
// non-empty change batch to h on that goroutine. A stream that fails for any
// reason other than unsubscribe is reported to onErr.
func (c *Client) Subscribe(ctx context.Context, collection string, h feed.Handler, onErr feed.ErrorHandler) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := c.client.Collection(collection).Snapshots(ctx)
	done := make(chan struct{})
	subLog := c.log.WithField("collection", collection)

	go func() {
		defer close(done)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if stoppedByOwner(ctx, err) {
					subLog.Debug("Snapshot listener finished")
					return
				}
				subLog.WithError(err).Error("Snapshot listener failed")
				if onErr != nil {
					onErr(fmt.Errorf("snapshot listener on %s: %w", collection, err))
				}
				return
			}
			changes := make([]feed.Change, 0, len(snap.Changes))
			for _, ch := range snap.Changes {
				changes = append(changes, feed.Change{Kind: toKind(ch.Kind), Doc: toDocument(ch.Doc)})
			}
			if len(changes) > 0 {
				h(changes)
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			// Stop must not race Next, so the goroutine stops the iterator itself.
			cancel()
			<-done
		})
	}
	return unsubscribe, nil
}

func (c *Client) Get(ctx context.Context, collection, id string) (feed.Document, error) {
	snap, err := c.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return feed.Document{}, wrapNotFound(err, collection, id)
	}
	return toDocument(snap), nil
}

func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]fs.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, fs.Update{Path: path, Value: value})
	}
	if _, err := c.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return wrapNotFound(err, collection, id)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if _, err := c.client.Collection(collection).Doc(id).Delete(ctx, fs.Exists); err != nil {
		return wrapNotFound(err, collection, id)
	}
	return nil
}

// stoppedByOwner reports whether a snapshot stream ended because its context was cancelled.
func stoppedByOwner(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, iterator.Done) || errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled
}

func wrapNotFound(err error, collection, id string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s/%s: %w", collection, id, feed.ErrDocumentNotFound)
	}
	return fmt.Errorf("%s/%s: %w", collection, id, err)
}

func toDocument(snap *fs.DocumentSnapshot) feed.Document {
	doc := feed.Document{ID: snap.Ref.ID}
	if snap.Exists() {
		doc.Fields = snap.Data()
	}
	return doc
}

func toKind(k fs.DocumentChangeKind) feed.ChangeKind {
	switch k {
	case fs.DocumentAdded:
		return feed.Added
	case fs.DocumentRemoved:
		return feed.Removed
	default:
		return feed.Modified
	}
}
