package metadata

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/gitgood-project/gitgood/pkg/errclass"
)

// MsgKey is the single key of the per-label metadata map.
const MsgKey = "msg"

// Document is the metadata attached to an anchor transaction:
//
//	{<label>: {"msg": [project, hash, message parts..., timestamp]}}
type Document struct {
	Label        uint64   `json:"label"`
	ProjectName  string   `json:"project_name"`
	CommitHash   string   `json:"commit_hash"`
	MessageParts []string `json:"message_parts"`
	Timestamp    string   `json:"timestamp"`
}

// Build validates the commit fields and assembles the metadata document.
func Build(label uint64, project, hash, message, timestamp string) (*Document, error) {
	project, err := NormalizeProjectName(project)
	if err != nil {
		return nil, err
	}
	if err := checkSlot("commit hash", hash); err != nil {
		return nil, err
	}
	if err := checkSlot("commit timestamp", timestamp); err != nil {
		return nil, err
	}
	parts, err := SplitMessage(message)
	if err != nil {
		return nil, err
	}
	return &Document{
		Label:        label,
		ProjectName:  project,
		CommitHash:   hash,
		MessageParts: parts,
		Timestamp:    timestamp,
	}, nil
}

// NormalizeProjectName NFC-normalizes name and checks it fits one slot.
func NormalizeProjectName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "", errclass.ErrNameInvalid.WithMessage("project name must not be empty")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", errclass.ErrNameInvalid.WithMessagef("project name must not contain control characters: %q", name)
		}
	}
	if len(name) > MaxSlotBytes {
		return "", errclass.ErrNameInvalid.WithMessagef("project name is %d bytes, limit is %d", len(name), MaxSlotBytes)
	}
	return name, nil
}

func checkSlot(field, v string) error {
	if len(v) > MaxSlotBytes {
		return errclass.ErrSlotOverflow.WithMessagef("%s is %d bytes, limit is %d", field, len(v), MaxSlotBytes)
	}
	return nil
}

// Msg returns the "msg" list in ledger order.
func (d *Document) Msg() []string {
	msg := make([]string, 0, len(d.MessageParts)+3)
	msg = append(msg, d.ProjectName, d.CommitHash)
	msg = append(msg, d.MessageParts...)
	return append(msg, d.Timestamp)
}

// Message reassembles the commit message from its slots.
func (d *Document) Message() string {
	return strings.Join(d.MessageParts, "")
}

// Metadata returns the document as a label-keyed metadata map.
func (d *Document) Metadata() map[uint64]map[string][]string {
	return map[uint64]map[string][]string{
		d.Label: {MsgKey: d.Msg()},
	}
}

// JSON renders the document the way chain indexers display it.
func (d *Document) JSON() ([]byte, error) {
	return json.Marshal(map[string]map[string][]string{
		strconv.FormatUint(d.Label, 10): {MsgKey: d.Msg()},
	})
}

// CommitHashFromMsg extracts the commit hash from an onchain "msg" list.
func CommitHashFromMsg(msg []string) (string, bool) {
	if len(msg) < 4 {
		return "", false
	}
	return msg[1], true
}
