// Package descriptor builds the respondent roster shipped next to the generated presentation.
package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

// FileName is the descriptor's entry name at the root of the distributable container.
const FileName = "ORSession.xml"

const (
	NamespaceRespondentList = "http://www.ombea.com/response/respondentlist"
	NamespaceSession        = "http://www.ombea.com/response/session"

	HeaderLastName  = "Nom"
	HeaderFirstName = "Prénom"
)

// Respondent is one roster line.
type Respondent struct {
	ID           int
	DeviceSerial string
	LastName     string
	FirstName    string
}

// FromParticipants numbers participants from 1 in the given order.
func FromParticipants(participants []session.Participant) []Respondent {
	out := make([]Respondent, 0, len(participants))
	for i, p := range participants {
		out = append(out, Respondent{
			ID:           i + 1,
			DeviceSerial: session.NormalizeSerial(p.DeviceSerial),
			LastName:     strings.TrimSpace(p.LastName),
			FirstName:    strings.TrimSpace(p.FirstName),
		})
	}
	return out
}

// Build renders the roster document. Column 1 is the device identifier, columns 2 and 3
// are the last and first name custom properties.
func Build(respondents []Respondent) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	root := doc.CreateElement("ors:Session")
	root.CreateAttr("xmlns:rl", NamespaceRespondentList)
	root.CreateAttr("xmlns:ors", NamespaceSession)
	root.CreateElement("ors:Questions")

	list := root.CreateElement("rl:RespondentList")
	headers := list.CreateElement("rl:RespondentHeaders")
	headers.CreateElement("rl:DeviceIDHeader").CreateElement("rl:Position").SetText("1")
	for i, text := range []string{HeaderLastName, HeaderFirstName} {
		h := headers.CreateElement("rl:CustomHeader")
		h.CreateElement("rl:Position").SetText(strconv.Itoa(i + 2))
		h.CreateElement("rl:Text").SetText(text)
	}

	entries := list.CreateElement("rl:Respondents")
	for _, r := range respondents {
		el := entries.CreateElement("rl:Respondent")
		el.CreateAttr("ID", strconv.Itoa(r.ID))
		devices := el.CreateElement("rl:Devices")
		if r.DeviceSerial != "" {
			devices.CreateElement("rl:Device").SetText(r.DeviceSerial)
		}
		addProperty(el, 2, r.LastName)
		addProperty(el, 3, r.FirstName)
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize roster descriptor: %w", err)
	}
	return data, nil
}

func addProperty(parent *etree.Element, id int, text string) {
	prop := parent.CreateElement("rl:CustomProperty")
	prop.CreateElement("rl:ID").SetText(strconv.Itoa(id))
	prop.CreateElement("rl:Text").SetText(text)
}
