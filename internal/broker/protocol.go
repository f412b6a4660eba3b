package broker

// Frame prefixes the reader classifies an incoming line by, per the wire
// protocol's colon-separated framing. Anything matching neither prefix is
// treated as a send frame: "<sender>:<recipient>:<body>".
const (
	prefixContacts = "GET_CONTACTS_FOR:"
	prefixHistory  = "GET_CHAT_HISTORY:"
)

// Frame size bounds. A control frame (contacts/history query) only ever
// carries usernames, so it gets a tight cap; a send frame carries a body
// of up to 4 KiB plus room for the sender/recipient prefix. Oversize
// frames cause disconnect rather than truncation.
const (
	maxControlFrameBytes = 1024
	maxSendFrameBytes    = 4096 + 512
)
