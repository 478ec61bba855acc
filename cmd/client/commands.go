package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vdavid/vmail/webclient/internal/controller"
	"github.com/vdavid/vmail/webclient/internal/models"
)

const usage = `commands:
  #<folder>/<page>/show[/<id>]    open a route (also #.../write[/draft/<id>])
  send <to> | <subject> | <body>  send a message
  draft <to> | <subject> | <body> save a draft
  bin                             move the open message to the bin
  delete                          delete the open message
  move <folder>                   move the open message
  mkdir <name>                    create a folder
  check <name>                    check a folder name
  resync                          fetch the mailbox again
  quit`

var errUsage = errors.New(usage)

// parseLine turns one input line into a command. Blank lines yield a command
// with an empty Type.
func parseLine(line string) (cmd controller.Command, quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return controller.Command{}, false, nil
	}
	if strings.HasPrefix(line, "#") {
		return controller.Command{Type: controller.CommandNavigate, Fragment: line}, false, nil
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "quit", "exit":
		return controller.Command{}, true, nil
	case "help":
		return controller.Command{}, false, errUsage
	case "send", "draft":
		draft, err := parseDraft(rest, verb == "send")
		if err != nil {
			return controller.Command{}, false, err
		}
		cmdType := controller.CommandSend
		if verb == "draft" {
			cmdType = controller.CommandSaveDraft
		}
		return controller.Command{Type: cmdType, Draft: draft}, false, nil
	case "bin":
		return controller.Command{Type: controller.CommandMoveToBin}, false, nil
	case "delete":
		return controller.Command{Type: controller.CommandDeleteMessage}, false, nil
	case "move":
		if rest == "" {
			return controller.Command{}, false, fmt.Errorf("move needs a folder")
		}
		return controller.Command{Type: controller.CommandMoveTo, Folder: rest}, false, nil
	case "mkdir":
		return controller.Command{Type: controller.CommandCreateFolder, Name: rest}, false, nil
	case "check":
		return controller.Command{Type: controller.CommandValidateFolderName, Name: rest}, false, nil
	case "resync":
		return controller.Command{Type: controller.CommandResync}, false, nil
	default:
		return controller.Command{}, false, fmt.Errorf("unknown command %q, type help", verb)
	}
}

// parseDraft splits "to | subject | body". Drafts may leave parts out.
func parseDraft(s string, needRecipient bool) (models.Draft, error) {
	parts := strings.SplitN(s, "|", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}

	draft := models.Draft{
		To:      strings.TrimSpace(parts[0]),
		Subject: strings.TrimSpace(parts[1]),
		Body:    strings.ReplaceAll(strings.TrimSpace(parts[2]), `\n`, "\n"),
	}
	if needRecipient && draft.To == "" {
		return models.Draft{}, fmt.Errorf("send needs a recipient")
	}
	return draft, nil
}
