package pipeline

import "strings"

// CommandKind selects which answer is computed.
type CommandKind int

const (
	CommandSingleItem CommandKind = iota
	CommandTotals
	CommandCompare
	CommandInvalid
)

func (k CommandKind) String() string {
	switch k {
	case CommandSingleItem:
		return "single"
	case CommandTotals:
		return "total"
	case CommandCompare:
		return "compare"
	default:
		return "invalid"
	}
}

// Command is the answer requested for one message. Keyword holds the
// rejected text when Kind is CommandInvalid.
type Command struct {
	Kind    CommandKind
	Keyword string
}

// SelectCommand derives the command from the attachment count and the
// message text. A single attachment always gets the single-item answer,
// whatever the text says.
func SelectCommand(numImages int, keyword string) Command {
	switch {
	case numImages == 1:
		return Command{Kind: CommandSingleItem}
	case keyword == "":
		return Command{Kind: CommandTotals}
	case strings.EqualFold(keyword, "total"):
		return Command{Kind: CommandTotals}
	case strings.EqualFold(keyword, "compare"):
		return Command{Kind: CommandCompare}
	default:
		return Command{Kind: CommandInvalid, Keyword: keyword}
	}
}
