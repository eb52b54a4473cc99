package descriptor

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

func TestBuildRoster(t *testing.T) {
	respondents := FromParticipants([]session.Participant{
		{FirstName: "Jean", LastName: "Dupont", DeviceSerial: " 1a2b3c "},
		{FirstName: "Zoé", LastName: "L'Hôte & fils"},
	})
	data, err := Build(respondents)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	root := doc.Root()
	assert.Equal(t, "Session", root.Tag)
	assert.Equal(t, NamespaceRespondentList, root.SelectAttrValue("xmlns:rl", ""))
	assert.Equal(t, NamespaceSession, root.SelectAttrValue("xmlns:ors", ""))
	require.NotNil(t, root.SelectElement("Questions"))
	assert.Empty(t, root.SelectElement("Questions").ChildElements())

	headers := root.FindElements("./RespondentList/RespondentHeaders/CustomHeader/Text")
	require.Len(t, headers, 2)
	assert.Equal(t, HeaderLastName, headers[0].Text())
	assert.Equal(t, HeaderFirstName, headers[1].Text())
	assert.NotNil(t, root.FindElement("./RespondentList/RespondentHeaders/DeviceIDHeader"))

	entries := root.FindElements("./RespondentList/Respondents/Respondent")
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].SelectAttrValue("ID", ""))
	assert.Equal(t, "1A2B3C", entries[0].FindElement("./Devices/Device").Text())
	props := entries[1].FindElements("./CustomProperty/Text")
	require.Len(t, props, 2)
	assert.Equal(t, "L'Hôte & fils", props[0].Text())
	assert.Equal(t, "Zoé", props[1].Text())
	assert.Nil(t, entries[1].FindElement("./Devices/Device"))
}
