package router

// Guild configuration keys.
const (
	KeyModLogActive          = "modlogactive"
	KeyModLogChannelID       = "modlogchannelid"
	KeyHoldingRoomRoleID     = "holdingroomroleid"
	KeyHoldingRoomActive     = "holdingroomactive"
	KeyHoldingRoomMinutes    = "holdingroomminutes"
	KeyPrefix                = "prefix"
	KeySilentCommands        = "silentcommands"
	KeyNoSpacePrefix         = "nospaceprefix"
	KeyStatistics            = "statistics"
	KeyWelcomeMessageActive  = "welcomemessageactive"
	KeyWelcomeMessage        = "welcomemessage"
	KeyWelcomeMessageChannel = "welcomemessagechannelid"
	KeyInviteLinkRemover     = "invitelinkremover"
)

// ConfigurationKeys is the complete key set a healthy guild configuration holds.
var ConfigurationKeys = []string{
	KeyModLogActive,
	KeyModLogChannelID,
	KeyHoldingRoomRoleID,
	KeyHoldingRoomActive,
	KeyHoldingRoomMinutes,
	KeyPrefix,
	KeySilentCommands,
	KeyNoSpacePrefix,
	KeyStatistics,
	KeyWelcomeMessageActive,
	KeyWelcomeMessage,
	KeyWelcomeMessageChannel,
	KeyInviteLinkRemover,
}
