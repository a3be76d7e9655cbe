package server

// Reply codes used on the control channel.
const (
	codeTransferStarting = 150
	codeOK               = 200
	codeWelcome          = 220
	codeGoodbye          = 221
	codeTransferComplete = 226
	codePassiveMode      = 227
	codeLoggedIn         = 230
	codeDirChanged       = 250
	codeNeedPassword     = 331
	codeServiceDown      = 421
	codeSyntaxError      = 500
	codeBadArguments     = 501
	codeNotLoggedIn      = 530
	codeActionFailed     = 550
)

// Canonical reply texts.
const (
	msgDirIncoming  = "Here comes the directory listing."
	msgFileIncoming = "Opening %s mode data connection for %s (%d bytes)."

	msgNotSupported = "Command not supported."
	msgModeSwitch   = "Switching to %s mode."
	msgPortSuccess  = "Port command successful."

	msgWelcome = "Welcome to my FTP server. Please don't break anything."
	msgGoodbye = "Goodbye."

	msgDirSendOK  = "Directory send OK."
	msgFileSendOK = "Transfer complete."

	msgPassiveMode = "Entering Passive Mode (%s)."

	msgLoginSuccess = "Login successful."
	msgDirChanged   = "Directory successfully changed."
	msgPassword     = "Please supply the password."

	msgAnonymousOnly = "This FTP server is anonymous only."
	msgMustLogin     = "Please login with USER and PASS."
	msgCantChange    = "Can't change from guest user."

	msgActionNotTaken = "The requested action could not be completed."
	msgFailedToOpen   = "Failed to open file."
	msgFailedToChange = "Failed to change directory."

	msgLineTooLong   = "Command line too long."
	msgBadPortArgs   = "Syntax error in parameters or arguments."
	msgIllegalPort   = "Illegal PORT command."
	msgTooManyUsers  = "Too many users, sorry."
	msgTooManyFromIP = "Too many connections from your IP address."
)
