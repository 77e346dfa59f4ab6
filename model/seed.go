package model

// SeedTurns is the number of greeting messages every conversation starts with.
// They are shown to the user but never sent to the agent.
const SeedTurns = 2

const (
	SeedQuestion = "Что ты умеешь?"
	SeedGreeting = "# Привет!\n" +
		"Я — агент техподдержки.\n\n" +
		"Опишите проблему и я помогу:\n" +
		"- С доступом\n" +
		"- С настройками ПО\n" +
		"- С диагностикой ошибок\n" +
		"- С поиском инструкций\n" +
		"<TechSupport />"
)

// FallbackReply replaces the agent reply whenever a cycle fails.
const FallbackReply = "*Ошибка на сервере, немного подождите и повторите вопрос.*"

// SeedMessages returns the greeting exchange a new conversation starts with.
func SeedMessages() []Message {
	return []Message{
		{Author: AuthorUser, Text: SeedQuestion},
		{Author: AuthorAgent, Text: SeedGreeting},
	}
}
