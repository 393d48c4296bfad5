package grpc

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/booksync/internal/api"
	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/services"
	"github.com/dmitrijs2005/booksync/internal/timex"
)

func toBook(b *models.Book) *api.Book {
	if b == nil {
		return nil
	}
	return &api.Book{
		ID:            b.ID,
		OwnerDeviceID: b.OwnerDeviceID,
		Name:          b.Name,
		ArchivedAt:    b.ArchivedAt,
		Version:       b.Version,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toEvent(e *models.Event) *api.Event {
	if e == nil {
		return nil
	}
	return &api.Event{
		ID:              e.ID,
		BookID:          e.BookID,
		RecordID:        e.RecordID,
		Title:           e.Title,
		Tags:            e.Tags,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		HasChargeItems:  e.HasChargeItems,
		HasNote:         e.HasNote,
		IsRemoved:       e.IsRemoved,
		RemovalReason:   e.RemovalReason,
		OriginalEventID: e.OriginalEventID,
		NewEventID:      e.NewEventID,
		IsChecked:       e.IsChecked,
		Version:         e.Version,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toStrokes(strokes []models.Stroke) []api.Stroke {
	out := make([]api.Stroke, 0, len(strokes))
	for _, s := range strokes {
		points := make([]api.Point, 0, len(s.Points))
		for _, p := range s.Points {
			points = append(points, api.Point{X: p.X, Y: p.Y})
		}
		out = append(out, api.Stroke{Points: points, Width: s.Width, Color: s.Color, Kind: string(s.Kind)})
	}
	return out
}

// fromStrokes keeps nil as nil so a missing legacy field stays missing.
// An empty kind means pen.
func fromStrokes(strokes []api.Stroke) ([]models.Stroke, error) {
	if strokes == nil {
		return nil, nil
	}
	out := make([]models.Stroke, 0, len(strokes))
	for i, s := range strokes {
		kind := models.StrokeKind(s.Kind)
		switch kind {
		case "":
			kind = models.StrokePen
		case models.StrokePen, models.StrokeHighlighter:
		default:
			return nil, fmt.Errorf("stroke %d: unknown kind %q: %w", i, s.Kind, common.ErrValidation)
		}
		points := make([]models.Point, 0, len(s.Points))
		for _, p := range s.Points {
			points = append(points, models.Point{X: p.X, Y: p.Y})
		}
		out = append(out, models.Stroke{Points: points, Width: s.Width, Color: s.Color, Kind: kind})
	}
	return out, nil
}

func toNote(n *models.Note) *api.Note {
	if n == nil {
		return nil
	}
	pages := make([][]api.Stroke, 0, len(n.Pages))
	for _, p := range n.Pages {
		pages = append(pages, toStrokes(p))
	}
	return &api.Note{
		ID:        n.ID,
		RecordID:  n.RecordID,
		Pages:     pages,
		Version:   n.Version,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func fromNoteRequest(req *api.UpsertNoteRequest) (services.NoteWrite, error) {
	var pages []models.Page
	for i, p := range req.Pages {
		strokes, err := fromStrokes(p)
		if err != nil {
			return services.NoteWrite{}, fmt.Errorf("page %d: %w", i, err)
		}
		if strokes == nil {
			strokes = []models.Stroke{}
		}
		pages = append(pages, models.Page(strokes))
	}
	legacy, err := fromStrokes(req.Strokes)
	if err != nil {
		return services.NoteWrite{}, err
	}
	return services.NoteWrite{
		RecordID:        req.RecordID,
		Pages:           pages,
		LegacyStrokes:   legacy,
		ExpectedVersion: req.ExpectedVersion,
	}, nil
}

func toDrawing(d *models.Drawing) *api.Drawing {
	if d == nil {
		return nil
	}
	return &api.Drawing{
		DrawingKey: api.DrawingKey{
			BookID:   d.BookID,
			Date:     d.Date.Format(timex.DateLayout),
			ViewMode: string(d.ViewMode),
		},
		Strokes:   toStrokes(d.Strokes),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func parseDate(s string) (time.Time, error) {
	t, err := timex.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, common.ErrValidation)
	}
	return t, nil
}

func fromDrawingKey(k api.DrawingKey) (models.DrawingKey, error) {
	date, err := parseDate(k.Date)
	if err != nil {
		return models.DrawingKey{}, err
	}
	return models.DrawingKey{BookID: k.BookID, Date: date, ViewMode: models.ViewMode(k.ViewMode)}, nil
}

func fromDrawingRequest(req *api.UpsertDrawingRequest) (services.DrawingWrite, error) {
	key, err := fromDrawingKey(req.DrawingKey)
	if err != nil {
		return services.DrawingWrite{}, err
	}
	strokes, err := fromStrokes(req.Strokes)
	if err != nil {
		return services.DrawingWrite{}, err
	}
	return services.DrawingWrite{Key: key, Strokes: strokes, ExpectedVersion: req.ExpectedVersion}, nil
}

func toChargeItem(c *models.ChargeItem) *api.ChargeItem {
	if c == nil {
		return nil
	}
	return &api.ChargeItem{
		ID:        c.ID,
		RecordID:  c.RecordID,
		EventID:   c.EventID,
		Name:      c.Name,
		Price:     c.Price,
		Received:  c.Received,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toBatchResponse(r *services.BatchResult) *api.BatchSaveResponse {
	items := make([]api.BatchItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, api.BatchItem{
			Kind:          it.Kind,
			Index:         it.Index,
			Key:           it.Key,
			Status:        it.Status,
			Reason:        it.Reason,
			ServerVersion: it.ServerVersion,
		})
	}
	return &api.BatchSaveResponse{
		Committed:      r.Committed,
		NotesSaved:     r.NotesSaved,
		NotesFailed:    r.NotesFailed,
		DrawingsSaved:  r.DrawingsSaved,
		DrawingsFailed: r.DrawingsFailed,
		Items:          items,
		Reason:         r.Reason,
	}
}

func toBackupTicket(t *services.BackupTicket) *api.BackupTicket {
	return &api.BackupTicket{Key: t.Key, URL: t.URL, ExpiresAt: t.ExpiresAt}
}

// mapSlice converts every element with conv.
func mapSlice[T, W any](in []*T, conv func(*T) *W) []*W {
	out := make([]*W, 0, len(in))
	for _, v := range in {
		out = append(out, conv(v))
	}
	return out
}
