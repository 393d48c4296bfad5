package grpc

import (
	"context"

	"github.com/dmitrijs2005/booksync/internal/api"
	"google.golang.org/grpc"
)

// SyncServiceServer is the server side of the sync service.
type SyncServiceServer interface {
	Ping(context.Context, *api.PingRequest) (*api.PingResponse, error)
	RegisterDevice(context.Context, *api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error)
	DeactivateDevice(context.Context, *api.Empty) (*api.Empty, error)
	CreateBook(context.Context, *api.CreateBookRequest) (*api.BookResponse, error)
	UpdateBook(context.Context, *api.UpdateBookRequest) (*api.BookResponse, error)
	DeleteBook(context.Context, *api.DeleteBookRequest) (*api.BookResponse, error)
	GrantBookAccess(context.Context, *api.BookAccessRequest) (*api.Empty, error)
	RevokeBookAccess(context.Context, *api.BookAccessRequest) (*api.Empty, error)
	CreateEvent(context.Context, *api.CreateEventRequest) (*api.EventResponse, error)
	GetEvent(context.Context, *api.EventRequest) (*api.GetEventResponse, error)
	UpdateEvent(context.Context, *api.UpdateEventRequest) (*api.EventResponse, error)
	RemoveEvent(context.Context, *api.RemoveEventRequest) (*api.EventResponse, error)
	RestoreEvent(context.Context, *api.EventRequest) (*api.EventResponse, error)
	RescheduleEvent(context.Context, *api.RescheduleEventRequest) (*api.RescheduleEventResponse, error)
	DeleteEvent(context.Context, *api.EventRequest) (*api.EventResponse, error)
	GetNote(context.Context, *api.RecordRequest) (*api.NoteResponse, error)
	UpsertNote(context.Context, *api.UpsertNoteRequest) (*api.NoteResponse, error)
	DeleteNote(context.Context, *api.DeleteNoteRequest) (*api.NoteResponse, error)
	BatchGetNotes(context.Context, *api.BatchGetNotesRequest) (*api.BatchGetNotesResponse, error)
	GetDrawing(context.Context, *api.DrawingRequest) (*api.DrawingResponse, error)
	UpsertDrawing(context.Context, *api.UpsertDrawingRequest) (*api.DrawingResponse, error)
	DeleteDrawing(context.Context, *api.DeleteDrawingRequest) (*api.DrawingResponse, error)
	ListDrawings(context.Context, *api.ListDrawingsRequest) (*api.ListDrawingsResponse, error)
	SaveChargeItem(context.Context, *api.SaveChargeItemRequest) (*api.ChargeItemResponse, error)
	DeleteChargeItem(context.Context, *api.DeleteChargeItemRequest) (*api.ChargeItemResponse, error)
	ListChargeItems(context.Context, *api.RecordRequest) (*api.ListChargeItemsResponse, error)
	BatchSave(context.Context, *api.BatchSaveRequest) (*api.BatchSaveResponse, error)
	RequestBackupUpload(context.Context, *api.BackupUploadRequest) (*api.BackupTicket, error)
	RequestBackupDownload(context.Context, *api.BackupDownloadRequest) (*api.BackupTicket, error)
}

var _ SyncServiceServer = (*GRPCServer)(nil)

// unary adapts a typed handler to the descriptor's untyped signature, the
// way generated code does per method.
func unary[Req, Resp any](method string, call func(SyncServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(SyncServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func method[Req, Resp any](name string, call func(SyncServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unary(name, call)}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method(api.MethodPing, SyncServiceServer.Ping),
		method(api.MethodRegisterDevice, SyncServiceServer.RegisterDevice),
		method(api.MethodDeactivateDevice, SyncServiceServer.DeactivateDevice),
		method(api.MethodCreateBook, SyncServiceServer.CreateBook),
		method(api.MethodUpdateBook, SyncServiceServer.UpdateBook),
		method(api.MethodDeleteBook, SyncServiceServer.DeleteBook),
		method(api.MethodGrantBookAccess, SyncServiceServer.GrantBookAccess),
		method(api.MethodRevokeBookAccess, SyncServiceServer.RevokeBookAccess),
		method(api.MethodCreateEvent, SyncServiceServer.CreateEvent),
		method(api.MethodGetEvent, SyncServiceServer.GetEvent),
		method(api.MethodUpdateEvent, SyncServiceServer.UpdateEvent),
		method(api.MethodRemoveEvent, SyncServiceServer.RemoveEvent),
		method(api.MethodRestoreEvent, SyncServiceServer.RestoreEvent),
		method(api.MethodRescheduleEvent, SyncServiceServer.RescheduleEvent),
		method(api.MethodDeleteEvent, SyncServiceServer.DeleteEvent),
		method(api.MethodGetNote, SyncServiceServer.GetNote),
		method(api.MethodUpsertNote, SyncServiceServer.UpsertNote),
		method(api.MethodDeleteNote, SyncServiceServer.DeleteNote),
		method(api.MethodBatchGetNotes, SyncServiceServer.BatchGetNotes),
		method(api.MethodGetDrawing, SyncServiceServer.GetDrawing),
		method(api.MethodUpsertDrawing, SyncServiceServer.UpsertDrawing),
		method(api.MethodDeleteDrawing, SyncServiceServer.DeleteDrawing),
		method(api.MethodListDrawings, SyncServiceServer.ListDrawings),
		method(api.MethodSaveChargeItem, SyncServiceServer.SaveChargeItem),
		method(api.MethodDeleteChargeItem, SyncServiceServer.DeleteChargeItem),
		method(api.MethodListChargeItems, SyncServiceServer.ListChargeItems),
		method(api.MethodBatchSave, SyncServiceServer.BatchSave),
		method(api.MethodRequestBackupUpload, SyncServiceServer.RequestBackupUpload),
		method(api.MethodRequestBackupDownload, SyncServiceServer.RequestBackupDownload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booksync/v1/sync.json",
}

// publicMethods are callable without device credentials.
var publicMethods = map[string]bool{
	api.FullMethod(api.MethodPing):           true,
	api.FullMethod(api.MethodRegisterDevice): true,
}
