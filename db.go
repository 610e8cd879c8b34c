package discordb

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"slices"
	"sync"

	"golang.org/x/time/rate"

	gen "github.com/unkn0wn-root/discordb/genstore"
	pr "github.com/unkn0wn-root/discordb/provider"
)

// attachmentPath extracts the channel id from a discord attachment url path:
// /attachments/<channel id>/<attachment id>/<filename>
var attachmentPath = regexp.MustCompile(`/attachments/(\d+)/`)

// DB is a record store over discord channels with an advisory cache.
// Safe for concurrent use; concurrent writes to the same record are not
// ordered and the last cache write wins.
type DB struct {
	remote   Remote
	resolver *Resolver
	bot      bool

	records Cache[Record]   // "record:<id>"
	lists   Cache[[]Record] // "container:<channel id>"
	pace    *rate.Limiter

	log   Logger
	hooks Hooks

	// nil in pass-through mode
	provider pr.Provider
	gens     gen.GenStore

	closeOnce sync.Once
	closeErr  error
}

// Containers returns the configured container names, sorted.
func (db *DB) Containers() []string { return db.resolver.Names() }

// Create stores body as a new record.
func (db *DB) Create(ctx context.Context, container, body string) (Record, error) {
	cid, err := db.container("create", container)
	if err != nil {
		return Record{}, err
	}
	rec, err := db.remote.CreateRecord(ctx, cid, body)
	if err != nil {
		return Record{}, db.remoteFailed("create", err)
	}
	db.created(ctx, cid, rec)
	db.log.Debug("record created", Fields{"container": cid, "id": rec.ID})
	return rec, nil
}

// CreateJSON stores the json encoding of v as a new record.
func (db *DB) CreateJSON(ctx context.Context, container string, v any) (Record, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Record{}, &ArgumentError{Op: "create", Arg: "value", Err: err}
	}
	return db.Create(ctx, container, string(body))
}

// Get lists every record in the container, newest first.
func (db *DB) Get(ctx context.Context, container string) ([]Record, error) {
	cid, err := db.container("get", container)
	if err != nil {
		return nil, err
	}
	return db.list(ctx, cid)
}

// GetOne returns a single record. With a bot token it fetches the message
// directly; otherwise it scans the container listing, which is O(n) in the
// container size and shares the listing cache with Get.
//
// A cached record is returned by id alone, whichever container was named.
func (db *DB) GetOne(ctx context.Context, container, id string) (Record, error) {
	cid, err := db.container("get", container)
	if err != nil {
		return Record{}, err
	}
	if id == "" {
		return Record{}, &ArgumentError{Op: "get", Arg: "id"}
	}
	if rec, ok := db.records.Get(ctx, id); ok {
		return rec, nil
	}
	g, fill := db.records.SnapshotGen(ctx, id)

	var rec Record
	if db.bot {
		rec, err = db.remote.FetchRecord(ctx, cid, id)
		if err != nil {
			return Record{}, db.remoteFailed("get", err)
		}
	} else {
		recs, err := db.list(ctx, cid)
		if err != nil {
			return Record{}, err
		}
		i := slices.IndexFunc(recs, func(r Record) bool { return r.ID == id })
		if i < 0 {
			return Record{}, &NotFoundError{Container: cid, ID: id}
		}
		rec = recs[i]
	}
	if fill {
		db.records.SetWithGen(context.WithoutCancel(ctx), id, rec, g)
	}
	return rec, nil
}

// Update replaces the body of an existing record.
func (db *DB) Update(ctx context.Context, container, id, body string) (Record, error) {
	cid, err := db.container("update", container)
	if err != nil {
		return Record{}, err
	}
	if id == "" {
		return Record{}, &ArgumentError{Op: "update", Arg: "id"}
	}
	g, fenced := db.records.SnapshotGen(ctx, id)
	rec, err := db.remote.PatchRecord(ctx, cid, id, body)
	if err != nil {
		return Record{}, db.remoteFailed("update", err)
	}
	db.updated(ctx, cid, rec, g, fenced)
	db.log.Debug("record updated", Fields{"container": cid, "id": rec.ID})
	return rec, nil
}

// UpdateJSON replaces the body of a record with the json encoding of v.
func (db *DB) UpdateJSON(ctx context.Context, container, id string, v any) (Record, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Record{}, &ArgumentError{Op: "update", Arg: "value", Err: err}
	}
	return db.Update(ctx, container, id, string(body))
}

// Delete removes a record and drops it from the cache.
func (db *DB) Delete(ctx context.Context, container, id string) error {
	cid, err := db.container("delete", container)
	if err != nil {
		return err
	}
	if id == "" {
		return &ArgumentError{Op: "delete", Arg: "id"}
	}
	if err := db.remote.DeleteRecord(ctx, cid, id); err != nil {
		return db.remoteFailed("delete", err)
	}
	db.removed(ctx, cid, id)
	db.log.Debug("record deleted", Fields{"container": cid, "id": id})
	return nil
}

// DeleteByURL deletes the record whose attachment url (or proxy url) equals
// rawURL. The channel is taken from the url path, so the record must live in
// the channel the attachment was uploaded to.
func (db *DB) DeleteByURL(ctx context.Context, rawURL string) (Record, error) {
	if rawURL == "" {
		return Record{}, &ArgumentError{Op: "delete_by_url", Arg: "url"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Record{}, &NotFoundError{URL: rawURL}
	}
	m := attachmentPath.FindStringSubmatch(u.Path)
	if m == nil {
		return Record{}, &NotFoundError{URL: rawURL}
	}
	cid := m[1]

	recs, err := db.remote.ListRecords(ctx, cid)
	if err != nil {
		return Record{}, db.remoteFailed("list", err)
	}
	i := slices.IndexFunc(recs, func(r Record) bool {
		return r.Attachment != nil && (r.Attachment.URL == rawURL || r.Attachment.ProxyURL == rawURL)
	})
	if i < 0 {
		return Record{}, &NotFoundError{Container: cid, URL: rawURL}
	}
	rec := recs[i]

	if err := db.remote.DeleteRecord(ctx, cid, rec.ID); err != nil {
		return Record{}, db.remoteFailed("delete", err)
	}
	db.removed(ctx, cid, rec.ID)
	db.log.Debug("record deleted by url", Fields{"container": cid, "id": rec.ID})
	return rec, nil
}

// DeleteAll deletes every record in the container one at a time, spaced by
// the sweep interval. It stops at the first failure and returns how many
// records were deleted; those stay deleted. Once the listing succeeded the
// container cache is dropped, also when the sweep is aborted.
func (db *DB) DeleteAll(ctx context.Context, container string) (int, error) {
	cid, err := db.container("delete_all", container)
	if err != nil {
		return 0, err
	}
	recs, err := db.remote.ListRecords(ctx, cid)
	if err != nil {
		return 0, db.remoteFailed("list", err)
	}

	wctx := context.WithoutCancel(ctx)
	defer db.lists.Delete(wctx, cid)

	deleted := 0
	for _, rec := range recs {
		if err := db.pace.Wait(ctx); err != nil {
			return deleted, db.remoteFailed("delete", err)
		}
		if err := db.remote.DeleteRecord(ctx, cid, rec.ID); err != nil {
			db.log.Warn("delete all aborted", Fields{"container": cid, "deleted": deleted, "remaining": len(recs) - deleted})
			return deleted, db.remoteFailed("delete", err)
		}
		db.records.Delete(wctx, rec.ID)
		deleted++
	}
	db.log.Info("container emptied", Fields{"container": cid, "deleted": deleted})
	return deleted, nil
}

// Upload stores a file as a record attachment. Content becomes the body.
func (db *DB) Upload(ctx context.Context, container string, up Upload) (Record, error) {
	cid, err := db.container("upload", container)
	if err != nil {
		return Record{}, err
	}
	if up.File == nil {
		return Record{}, &ArgumentError{Op: "upload", Arg: "file"}
	}
	if up.Filename == "" {
		return Record{}, &ArgumentError{Op: "upload", Arg: "filename"}
	}
	rec, err := db.remote.CreateRecordWithAttachment(ctx, cid, up.File, up.Filename, up.Content)
	if err != nil {
		return Record{}, db.remoteFailed("upload", err)
	}
	db.created(ctx, cid, rec)
	db.log.Debug("file uploaded", Fields{"container": cid, "id": rec.ID, "filename": up.Filename})
	return rec, nil
}

// Close releases the cache provider and generation store. Safe to call
// more than once.
func (db *DB) Close(ctx context.Context) error {
	db.closeOnce.Do(func() {
		var errs []error
		if db.gens != nil {
			errs = append(errs, db.gens.Close(ctx))
		}
		if db.provider != nil {
			errs = append(errs, db.provider.Close(ctx))
		}
		db.closeErr = errors.Join(errs...)
	})
	return db.closeErr
}

func (db *DB) container(op, container string) (string, error) {
	if container == "" {
		return "", &ArgumentError{Op: op, Arg: "container"}
	}
	return db.resolver.Resolve(container), nil
}

func (db *DB) list(ctx context.Context, cid string) ([]Record, error) {
	if recs, ok := db.lists.Get(ctx, cid); ok {
		return recs, nil
	}
	g, fill := db.lists.SnapshotGen(ctx, cid)
	recs, err := db.remote.ListRecords(ctx, cid)
	if err != nil {
		return nil, db.remoteFailed("list", err)
	}
	if fill {
		db.lists.SetWithGen(context.WithoutCancel(ctx), cid, recs, g)
	}
	return recs, nil
}

// created runs after a successful create or upload. It must not be skipped
// once discord accepted the write, hence WithoutCancel. A new message id was
// never bumped, so the entry is written at generation 0; a delete that beat
// us here wins.
func (db *DB) created(ctx context.Context, cid string, rec Record) {
	ctx = context.WithoutCancel(ctx)
	db.records.SetWithGen(ctx, rec.ID, rec, 0)
	db.lists.Delete(ctx, cid)
}

// updated fences fills that read the record before the patch. Without a
// generation from before the patch the entry is only dropped.
func (db *DB) updated(ctx context.Context, cid string, rec Record, g uint64, fenced bool) {
	ctx = context.WithoutCancel(ctx)
	if fenced {
		db.records.Replace(ctx, rec.ID, rec, g)
	} else {
		db.records.Delete(ctx, rec.ID)
	}
	db.lists.Delete(ctx, cid)
}

func (db *DB) removed(ctx context.Context, cid, id string) {
	ctx = context.WithoutCancel(ctx)
	db.records.Delete(ctx, id)
	db.lists.Delete(ctx, cid)
}

// remoteFailed normalizes err into the package error kinds and reports it.
func (db *DB) remoteFailed(op string, err error) error {
	if !isKnown(err) {
		err = &RemoteError{Op: op, Err: err}
	}
	var re *RemoteError
	if errors.As(err, &re) {
		db.hooks.RemoteFailure(op, re.Status, re.Code)
	}
	f := Fields{"op": op, "err": err}
	if errors.Is(err, ErrNotFound) {
		db.log.Debug("discord call found nothing", f)
	} else {
		db.log.Warn("discord call failed", f)
	}
	return err
}
