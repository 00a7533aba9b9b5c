package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendRoomMessage persists a chat message and delivers it to room members.
	CommandSendRoomMessage CommandKind = iota
	// CommandJoinRoom subscribes the session to a room and requests its history.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the session from a room.
	CommandLeaveRoom
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Room    string
	Message Message
}
