package escape

// Terminal control sequences written around the query prompt
const (
	SaveCursor    = "\x1b7"
	RestoreCursor = "\x1b8"
	ClearLine     = "\x1b[2K\r"
	Reverse       = "\x1b[7m"
	Red           = "\x1b[31m"
	Green         = "\x1b[32m"
	Yellow        = "\x1b[33m"
	Reset         = "\x1b[0m"
	EraseChar     = "\b \b"
)

// Prompt labels
const (
	BannerPrefix    = "[ESChatch] "
	PromptLabel     = "[ESChatch] Task: "
	ChatPromptLabel = "[ESChatch] (chat) Task: "
)

// Prompt returns the overlay written when escape mode starts
func Prompt(chat bool) []byte {
	label := PromptLabel
	if chat {
		label = ChatPromptLabel
	}
	return []byte(SaveCursor + Reverse + label + Reset)
}

// Banner formats a one-line notice for the real terminal. An empty color
// leaves the text unstyled.
func Banner(color, text string) []byte {
	if color == "" {
		return []byte(BannerPrefix + text + "\r\n")
	}
	return []byte(color + BannerPrefix + text + Reset + "\r\n")
}

// ChatExitBanner is shown when an empty query ends chat mode
func ChatExitBanner() []byte {
	return append([]byte(ClearLine), Banner(Green, "Chat mode exited.")...)
}
