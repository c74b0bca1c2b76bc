package core

// Inbound event names.
const (
	EvRegister       = "register"
	EvLogin          = "login"
	EvAuthenticate   = "authenticate"
	EvUpdateProfile  = "updateProfile"
	EvSendMessage    = "sendMessage"
	EvPrivateMessage = "privateMessage"
	EvRequestDJ      = "requestDJ"
	EvDJUpdate       = "djUpdate"
	EvPing           = "ping"
	EvReportPing     = "reportPing"

	EvAdminKick         = "adminKick"
	EvAdminAnnouncement = "adminAnnouncement"
	EvAdminResetDJ      = "adminResetDj"
	EvAdminClearChat    = "adminClearChat"

	EvVoiceJoin        = "voice-join"
	EvVoiceLeave       = "voice-leave"
	EvVoiceSignal      = "voice-signal"
	EvVoiceStateUpdate = "voice-state-update"

	EvStreamStart  = "stream-start"
	EvStreamStop   = "stream-stop"
	EvStreamJoin   = "stream-join"
	EvStreamLeave  = "stream-leave"
	EvStreamSignal = "stream-signal"
)

// Outbound event names.
const (
	OutInit              = "init"
	OutAck               = "ack"
	OutError             = "error"
	OutAuthSuccess       = "authSuccess"
	OutAuthError         = "authError"
	OutUserUpdate        = "userUpdate"
	OutUserPartialUpdate = "userPartialUpdate"
	OutNewMessage        = "newMessage"
	OutPrivateMessage    = "privateMessage"
	OutChatCleared       = "chatCleared"
	OutDJChanged         = "djChanged"
	OutRoomUpdate        = "roomUpdate"
	OutRoomSync          = "roomSync"

	OutVoiceUpdate   = "voice-update"
	OutVoicePeerList = "voice-peer-list"
	OutVoiceSignal   = "voice-signal"

	OutStreamUpdate    = "stream-update"
	OutStreamPeerJoin  = "stream-peer-join"
	OutStreamPeerLeave = "stream-peer-leave"
	OutStreamSignal    = "stream-signal"
)
