package dispatch

import (
	"strings"

	"github.com/aretw0/tripwire/pkg/domain"
)

var vocabulary = map[string]domain.CommandKind{
	"start":        domain.CommandHelp,
	"help":         domain.CommandHelp,
	"about":        domain.CommandAbout,
	"keywords":     domain.CommandListKeywords,
	"kwadd":        domain.CommandAddKeywords,
	"kwdel":        domain.CommandRemoveKeywords,
	"kwclear":      domain.CommandClearKeywords,
	"autokick":     domain.CommandToggleAutoKick,
	"savekeywords": domain.CommandPersist,
}

// ParseCommand maps message text to a Command. The leading token must be a
// known command, optionally suffixed with @botname; when botUsername is set,
// commands addressed to a different bot are Unknown. For kwadd and kwdel the
// remaining whitespace separated tokens become Args.
func ParseCommand(text, botUsername string) domain.Command {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return domain.Command{Kind: domain.CommandUnknown}
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if botUsername != "" && !strings.EqualFold(target, strings.TrimPrefix(botUsername, "@")) {
			return domain.Command{Kind: domain.CommandUnknown}
		}
	}

	kind, ok := vocabulary[name]
	if !ok {
		return domain.Command{Kind: domain.CommandUnknown}
	}

	cmd := domain.Command{Kind: kind}
	if kind == domain.CommandAddKeywords || kind == domain.CommandRemoveKeywords {
		cmd.Args = fields[1:]
	}
	return cmd
}
