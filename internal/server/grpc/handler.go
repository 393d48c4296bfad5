package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/booksync/internal/api"
	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/server/metrics"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/services"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
)

// Entity kinds used as the metrics label of single writes.
const (
	kindBook       = "book"
	kindEvent      = "event"
	kindNote       = "note"
	kindDrawing    = "drawing"
	kindChargeItem = "charge_item"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, common.ErrVersionConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, common.ErrEntityGone):
		return metrics.OutcomeGone
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrUnauthorizedBook),
		errors.Is(err, common.ErrUnauthorizedRecord):
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

// settle records the outcome of a write and reports a version conflict as
// data rather than as an error.
func settle[T, W any](s *GRPCServer, kind string, row *T, err error, conv func(*T) *W) (*W, *api.Conflict[W], error) {
	s.metrics.Write(kind, outcomeOf(err))
	if ce, ok := versioned.AsConflict[T](err); ok {
		return nil, &api.Conflict[W]{Version: ce.Version, Current: conv(ce.Current)}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return conv(row), nil, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}

func (s *GRPCServer) RegisterDevice(ctx context.Context, req *api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error) {

	device, err := s.svc.Devices.Register(ctx, req.Name, req.Platform)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registered device", "device", device.ID, "platform", device.Platform)
	return &api.RegisterDeviceResponse{DeviceID: device.ID, Secret: device.SecretToken}, nil

}

func (s *GRPCServer) DeactivateDevice(ctx context.Context, req *api.Empty) (*api.Empty, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.Devices.Deactivate(ctx, deviceID); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Deactivated device", "device", deviceID)
	return &api.Empty{}, nil

}

func (s *GRPCServer) CreateBook(ctx context.Context, req *api.CreateBookRequest) (*api.BookResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.svc.Books.Create(ctx, deviceID, req.Name)
	b, conflict, err := settle(s, kindBook, book, err, toBook)
	if err != nil {
		return nil, err
	}
	return &api.BookResponse{Book: b, Conflict: conflict}, nil

}

func (s *GRPCServer) UpdateBook(ctx context.Context, req *api.UpdateBookRequest) (*api.BookResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.svc.Books.Update(ctx, deviceID, req.BookID, req.ExpectedVersion, req.Name, req.Archived)
	b, conflict, err := settle(s, kindBook, book, err, toBook)
	if err != nil {
		return nil, err
	}
	return &api.BookResponse{Book: b, Conflict: conflict}, nil

}

func (s *GRPCServer) DeleteBook(ctx context.Context, req *api.DeleteBookRequest) (*api.BookResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.svc.Books.Delete(ctx, deviceID, req.BookID, req.ExpectedVersion)
	b, conflict, err := settle(s, kindBook, book, err, toBook)
	if err != nil {
		return nil, err
	}
	return &api.BookResponse{Book: b, Conflict: conflict}, nil

}

func (s *GRPCServer) GrantBookAccess(ctx context.Context, req *api.BookAccessRequest) (*api.Empty, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.Books.GrantAccess(ctx, deviceID, req.BookID, req.DeviceID); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil

}

func (s *GRPCServer) RevokeBookAccess(ctx context.Context, req *api.BookAccessRequest) (*api.Empty, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.Books.RevokeAccess(ctx, deviceID, req.BookID, req.DeviceID); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil

}

func (s *GRPCServer) CreateEvent(ctx context.Context, req *api.CreateEventRequest) (*api.EventResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	in := services.CreateEventInput{
		BookID:    req.BookID,
		RecordID:  req.RecordID,
		Title:     req.Title,
		Tags:      req.Tags,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsChecked: req.IsChecked,
	}
	if req.Record != nil {
		in.Record = &services.RecordInput{
			RecordNumber: req.Record.RecordNumber,
			Name:         req.Record.Name,
			Phone:        req.Record.Phone,
		}
	}

	event, err := s.svc.Events.Create(ctx, deviceID, in)
	e, conflict, err := settle(s, kindEvent, event, err, toEvent)
	if err != nil {
		return nil, err
	}
	return &api.EventResponse{Event: e, Conflict: conflict}, nil

}

func (s *GRPCServer) GetEvent(ctx context.Context, req *api.EventRequest) (*api.GetEventResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	view, err := s.svc.Events.Get(ctx, deviceID, req.EventID)
	if err != nil {
		return nil, err
	}

	return &api.GetEventResponse{
		Event:     toEvent(view.Event),
		Original:  toEvent(view.Original),
		Successor: toEvent(view.Successor),
	}, nil

}

func (s *GRPCServer) UpdateEvent(ctx context.Context, req *api.UpdateEventRequest) (*api.EventResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	patch := models.EventPatch{
		Title:         req.Title,
		Tags:          req.Tags,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		ClearEndTime:  req.ClearEndTime,
		IsChecked:     req.IsChecked,
		IsRemoved:     req.IsRemoved,
		RemovalReason: req.RemovalReason,
	}

	event, err := s.svc.Events.Update(ctx, deviceID, req.EventID, req.ExpectedVersion, patch)
	e, conflict, err := settle(s, kindEvent, event, err, toEvent)
	if err != nil {
		return nil, err
	}
	return &api.EventResponse{Event: e, Conflict: conflict}, nil

}

func (s *GRPCServer) RemoveEvent(ctx context.Context, req *api.RemoveEventRequest) (*api.EventResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	event, err := s.svc.Events.Remove(ctx, deviceID, req.EventID, req.Reason)
	e, conflict, err := settle(s, kindEvent, event, err, toEvent)
	if err != nil {
		return nil, err
	}
	return &api.EventResponse{Event: e, Conflict: conflict}, nil

}

func (s *GRPCServer) RestoreEvent(ctx context.Context, req *api.EventRequest) (*api.EventResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	event, err := s.svc.Events.Restore(ctx, deviceID, req.EventID)
	e, conflict, err := settle(s, kindEvent, event, err, toEvent)
	if err != nil {
		return nil, err
	}
	return &api.EventResponse{Event: e, Conflict: conflict}, nil

}

func (s *GRPCServer) RescheduleEvent(ctx context.Context, req *api.RescheduleEventRequest) (*api.RescheduleEventResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	old, created, err := s.svc.Events.Reschedule(ctx, deviceID, req.EventID, req.StartTime, req.EndTime, req.Reason)
	s.metrics.Write(kindEvent, outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Rescheduled event", "event", old.ID, "successor", created.ID)
	return &api.RescheduleEventResponse{Superseded: toEvent(old), Created: toEvent(created)}, nil

}

func (s *GRPCServer) DeleteEvent(ctx context.Context, req *api.EventRequest) (*api.EventResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	event, err := s.svc.Events.Delete(ctx, deviceID, req.EventID)
	e, conflict, err := settle(s, kindEvent, event, err, toEvent)
	if err != nil {
		return nil, err
	}
	return &api.EventResponse{Event: e, Conflict: conflict}, nil

}

func (s *GRPCServer) GetNote(ctx context.Context, req *api.RecordRequest) (*api.NoteResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	note, err := s.svc.Notes.Get(ctx, deviceID, req.RecordID)
	if err != nil {
		return nil, err
	}
	return &api.NoteResponse{Note: toNote(note)}, nil

}

func (s *GRPCServer) UpsertNote(ctx context.Context, req *api.UpsertNoteRequest) (*api.NoteResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	w, err := fromNoteRequest(req)
	if err != nil {
		return nil, err
	}

	note, err := s.svc.Notes.Upsert(ctx, deviceID, w)
	n, conflict, err := settle(s, kindNote, note, err, toNote)
	if err != nil {
		return nil, err
	}
	return &api.NoteResponse{Note: n, Conflict: conflict}, nil

}

func (s *GRPCServer) DeleteNote(ctx context.Context, req *api.DeleteNoteRequest) (*api.NoteResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	note, err := s.svc.Notes.Delete(ctx, deviceID, req.RecordID, req.ExpectedVersion)
	n, conflict, err := settle(s, kindNote, note, err, toNote)
	if err != nil {
		return nil, err
	}
	return &api.NoteResponse{Note: n, Conflict: conflict}, nil

}

func (s *GRPCServer) BatchGetNotes(ctx context.Context, req *api.BatchGetNotesRequest) (*api.BatchGetNotesResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	notes, err := s.svc.Notes.ListForDevice(ctx, deviceID, req.RecordIDs)
	if err != nil {
		return nil, err
	}
	return &api.BatchGetNotesResponse{Notes: mapSlice(notes, toNote)}, nil

}

func (s *GRPCServer) GetDrawing(ctx context.Context, req *api.DrawingRequest) (*api.DrawingResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	key, err := fromDrawingKey(req.DrawingKey)
	if err != nil {
		return nil, err
	}

	drawing, err := s.svc.Drawings.Get(ctx, deviceID, key)
	if err != nil {
		return nil, err
	}
	return &api.DrawingResponse{Drawing: toDrawing(drawing)}, nil

}

func (s *GRPCServer) UpsertDrawing(ctx context.Context, req *api.UpsertDrawingRequest) (*api.DrawingResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	w, err := fromDrawingRequest(req)
	if err != nil {
		return nil, err
	}

	drawing, err := s.svc.Drawings.Upsert(ctx, deviceID, w)
	d, conflict, err := settle(s, kindDrawing, drawing, err, toDrawing)
	if err != nil {
		return nil, err
	}
	return &api.DrawingResponse{Drawing: d, Conflict: conflict}, nil

}

func (s *GRPCServer) DeleteDrawing(ctx context.Context, req *api.DeleteDrawingRequest) (*api.DrawingResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	key, err := fromDrawingKey(req.DrawingKey)
	if err != nil {
		return nil, err
	}

	drawing, err := s.svc.Drawings.Delete(ctx, deviceID, key, req.ExpectedVersion)
	d, conflict, err := settle(s, kindDrawing, drawing, err, toDrawing)
	if err != nil {
		return nil, err
	}
	return &api.DrawingResponse{Drawing: d, Conflict: conflict}, nil

}

func (s *GRPCServer) ListDrawings(ctx context.Context, req *api.ListDrawingsRequest) (*api.ListDrawingsResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	from, err := parseDate(req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(req.To)
	if err != nil {
		return nil, err
	}

	drawings, err := s.svc.Drawings.ListRange(ctx, deviceID, req.BookID, from, to)
	if err != nil {
		return nil, err
	}
	return &api.ListDrawingsResponse{Drawings: mapSlice(drawings, toDrawing)}, nil

}

func (s *GRPCServer) SaveChargeItem(ctx context.Context, req *api.SaveChargeItemRequest) (*api.ChargeItemResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	w := services.ChargeItemWrite{
		ID:              req.ID,
		RecordID:        req.RecordID,
		EventID:         req.EventID,
		Name:            req.Name,
		Price:           req.Price,
		Received:        req.Received,
		ExpectedVersion: req.ExpectedVersion,
	}

	item, err := s.svc.ChargeItems.Save(ctx, deviceID, w)
	c, conflict, err := settle(s, kindChargeItem, item, err, toChargeItem)
	if err != nil {
		return nil, err
	}
	return &api.ChargeItemResponse{Item: c, Conflict: conflict}, nil

}

func (s *GRPCServer) DeleteChargeItem(ctx context.Context, req *api.DeleteChargeItemRequest) (*api.ChargeItemResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	item, err := s.svc.ChargeItems.Delete(ctx, deviceID, req.ID, req.ExpectedVersion)
	c, conflict, err := settle(s, kindChargeItem, item, err, toChargeItem)
	if err != nil {
		return nil, err
	}
	return &api.ChargeItemResponse{Item: c, Conflict: conflict}, nil

}

func (s *GRPCServer) ListChargeItems(ctx context.Context, req *api.RecordRequest) (*api.ListChargeItemsResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.svc.ChargeItems.List(ctx, deviceID, req.RecordID)
	if err != nil {
		return nil, err
	}
	return &api.ListChargeItemsResponse{Items: mapSlice(items, toChargeItem)}, nil

}

func (s *GRPCServer) BatchSave(ctx context.Context, req *api.BatchSaveRequest) (*api.BatchSaveResponse, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	notes := make([]services.NoteWrite, 0, len(req.Notes))
	for i := range req.Notes {
		w, err := fromNoteRequest(&req.Notes[i])
		if err != nil {
			return nil, err
		}
		notes = append(notes, w)
	}

	drawings := make([]services.DrawingWrite, 0, len(req.Drawings))
	for i := range req.Drawings {
		w, err := fromDrawingRequest(&req.Drawings[i])
		if err != nil {
			return nil, err
		}
		drawings = append(drawings, w)
	}

	result, err := s.svc.Batch.Save(ctx, deviceID, notes, drawings)
	if err != nil {
		return nil, err
	}

	s.metrics.Batch(result.Committed, result.Reason, len(notes)+len(drawings))
	if !result.Committed {
		s.logger.Warn(ctx, "Batch rolled back", "device", deviceID, "reason", result.Reason)
	}
	return toBatchResponse(result), nil

}

func (s *GRPCServer) RequestBackupUpload(ctx context.Context, req *api.BackupUploadRequest) (*api.BackupTicket, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ticket, err := s.svc.Backups.RequestUpload(ctx, deviceID, req.BookID)
	if err != nil {
		return nil, err
	}
	return toBackupTicket(ticket), nil

}

func (s *GRPCServer) RequestBackupDownload(ctx context.Context, req *api.BackupDownloadRequest) (*api.BackupTicket, error) {

	deviceID, err := deviceFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ticket, err := s.svc.Backups.RequestDownload(ctx, deviceID, req.Key)
	if err != nil {
		return nil, err
	}
	return toBackupTicket(ticket), nil

}
