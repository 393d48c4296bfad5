// Package api holds the wire contract of the booksync sync service: the
// service and method names, the JSON codec and the request/response messages
// shared by the server and its clients.
package api

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "booksync.v1.SyncService"

// Method names of the sync service.
const (
	MethodPing                  = "Ping"
	MethodRegisterDevice        = "RegisterDevice"
	MethodDeactivateDevice      = "DeactivateDevice"
	MethodCreateBook            = "CreateBook"
	MethodUpdateBook            = "UpdateBook"
	MethodDeleteBook            = "DeleteBook"
	MethodGrantBookAccess       = "GrantBookAccess"
	MethodRevokeBookAccess      = "RevokeBookAccess"
	MethodCreateEvent           = "CreateEvent"
	MethodGetEvent              = "GetEvent"
	MethodUpdateEvent           = "UpdateEvent"
	MethodRemoveEvent           = "RemoveEvent"
	MethodRestoreEvent          = "RestoreEvent"
	MethodRescheduleEvent       = "RescheduleEvent"
	MethodDeleteEvent           = "DeleteEvent"
	MethodGetNote               = "GetNote"
	MethodUpsertNote            = "UpsertNote"
	MethodDeleteNote            = "DeleteNote"
	MethodBatchGetNotes         = "BatchGetNotes"
	MethodGetDrawing            = "GetDrawing"
	MethodUpsertDrawing         = "UpsertDrawing"
	MethodDeleteDrawing         = "DeleteDrawing"
	MethodListDrawings          = "ListDrawings"
	MethodSaveChargeItem        = "SaveChargeItem"
	MethodDeleteChargeItem      = "DeleteChargeItem"
	MethodListChargeItems       = "ListChargeItems"
	MethodBatchSave             = "BatchSave"
	MethodRequestBackupUpload   = "RequestBackupUpload"
	MethodRequestBackupDownload = "RequestBackupDownload"
)

// FullMethod returns the gRPC path of a method, e.g. "/booksync.v1.SyncService/Ping".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
