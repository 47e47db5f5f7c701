package domain

// CommandKind identifies a parsed chat command.
type CommandKind string

const (
	CommandHelp           CommandKind = "help"
	CommandAbout          CommandKind = "about"
	CommandListKeywords   CommandKind = "keywords"
	CommandAddKeywords    CommandKind = "kwadd"
	CommandRemoveKeywords CommandKind = "kwdel"
	CommandClearKeywords  CommandKind = "kwclear"
	CommandToggleAutoKick CommandKind = "autokick"
	CommandPersist        CommandKind = "savekeywords"
	CommandUnknown        CommandKind = "unknown"
)

// Mutates reports whether the command changes keyword or moderation state,
// and therefore requires an authorized actor.
func (k CommandKind) Mutates() bool {
	switch k {
	case CommandAddKeywords, CommandRemoveKeywords, CommandClearKeywords,
		CommandToggleAutoKick, CommandPersist:
		return true
	}
	return false
}

// Command is one parsed inbound text command. Args holds the keyword batch
// for CommandAddKeywords and CommandRemoveKeywords.
type Command struct {
	Kind CommandKind
	Args []string
}
