package internal

import (
	"chat-match/repositories"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultInspectPrefix = repositories.SessionPrefix

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
	ExpiresIn string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func(ctx context.Context) map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// NewDebugHandler serves a read-only HTML view of the badger keys under ?prefix=
// together with the live counters.
func NewDebugHandler(db *badger.DB, endpoint string, mapper RowMapper, statsProvider StatsProvider) http.Handler {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	if mapper == nil {
		mapper = DefaultMapper
	}

	r := chi.NewRouter()
	r.Get(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultInspectPrefix
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider(r.Context())
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				key := string(item.KeyCopy(nil))
				expiresAt := item.ExpiresAt()
				err := item.Value(func(val []byte) error {
					row := mapper(key, val)
					if expiresAt > 0 {
						row.ExpiresIn = time.Until(time.Unix(int64(expiresAt), 0)).Truncate(time.Second).String()
					}
					data.Items = append(data.Items, row)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})
	return r
}

// StartDebugServer serves the inspector on every interface until ctx is done.
func StartDebugServer(ctx context.Context, log *slog.Logger, db *badger.DB, port int, endpoint string,
	mapper RowMapper, statsProvider StatsProvider) {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           NewDebugHandler(db, endpoint, mapper, statsProvider),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Debug server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}

// SessionMapper renders session records and waiting index entries.
func SessionMapper(key string, val []byte) InspectRow {
	switch {
	case strings.HasPrefix(key, repositories.SessionPrefix):
		s, err := repositories.DecodeSession(val)
		if err != nil {
			row := DefaultMapper(key, val)
			row.Detail = "Corrupted: " + err.Error()
			return row
		}
		detail := s.Status.String()
		if s.PartnerID != "" {
			detail += " with " + short(s.PartnerID)
		}
		return InspectRow{
			Key:       key,
			Type:      "SESSION",
			Timestamp: s.LastTransitionAt.Format("15:04:05"),
			EntityID:  short(s.ConnectionID),
			Detail:    detail,
		}
	case strings.HasPrefix(key, repositories.WaitingPrefix):
		row := InspectRow{Key: key, Type: "WAITING", Timestamp: "--:--:--", Detail: "queued"}
		parts := strings.SplitN(strings.TrimPrefix(key, repositories.WaitingPrefix), ":", 2)
		if len(parts) == 2 {
			if tsNano, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
				row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
			}
			row.EntityID = short(parts[1])
		}
		return row
	default:
		return DefaultMapper(key, val)
	}
}

func DefaultMapper(key string, val []byte) InspectRow {
	return InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
