package model

import "time"

// Author identifies who wrote a message.
type Author string

const (
	AuthorUser  Author = "user"
	AuthorAgent Author = "agent"
)

// Reaction is the user's verdict on an agent reply.
type Reaction int

const (
	ReactionNone Reaction = iota
	ReactionLiked
	ReactionDisliked
)

func (r Reaction) String() string {
	switch r {
	case ReactionLiked:
		return "liked"
	case ReactionDisliked:
		return "disliked"
	default:
		return "none"
	}
}

// ParseReaction is the inverse of Reaction.String. Unknown values map to ReactionNone.
func ParseReaction(s string) Reaction {
	switch s {
	case "liked":
		return ReactionLiked
	case "disliked":
		return ReactionDisliked
	default:
		return ReactionNone
	}
}

// Message is one committed conversational turn
type Message struct {
	Author    Author
	Text      string
	Reaction  Reaction
	Timestamp time.Time
}
