// Package refine cleans up raw transcript fragments with a chat-completion
// model and estimates the token cost of each prompt.
package refine

// DefaultSystemPrompt is the instruction sent with every fragment unless the
// config overrides it.
const DefaultSystemPrompt = `
You are a helpful assistant. You will receive a chunk of a raw transcription from a call to the Whisper API. I need you to process the text doing the following tasks:
- fix and add punctuation, if necessary
- fix typos and general grammar or syntax errors
- organize the text into few relevant sections (only when there are different topics). Use markdown syntax for headers (use ## before the header)
This is very important, take a big breath and perform the task carefully.
`

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat prompt.
type Message struct {
	Role    string
	Content string
	Name    string // optional participant name
}

// Delimiters around the raw fragment in the user message.
const (
	fragmentOpen  = "<<<"
	fragmentClose = ">>>"
)

// PrepareMessages builds the two-message prompt for one fragment.
func PrepareMessages(systemPrompt, fragment string) []Message {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: "\n\nTRANSCRIPT CHUNK:\n\n" + fragmentOpen + fragment + fragmentClose + "\n\nPROCESSED TRANSCRIPT CHUNK:"},
	}
}
