package chat

// Fixed visitor-facing strings.
const (
	Greeting = "Hi! I'm your AI assistant. Ask me anything about your background, skills, projects, or experience!"
	Apology  = "Sorry, I'm having trouble connecting right now. Please try again later."

	OfflineNotice          = "AI server is currently offline. Please try again later."
	RemoteFailureNotice    = "Failed to get response. Please try again."
	TransportFailureNotice = "Failed to get response. Please try again later."
)

var suggestions = []string{
	"What is your background?",
	"Tell me about your projects",
	"What are your technical skills?",
	"Where did you study?",
	"What's your work experience?",
}

// Suggestions returns the predefined questions offered next to the input box.
func Suggestions() []string {
	out := make([]string, len(suggestions))
	copy(out, suggestions)
	return out
}
