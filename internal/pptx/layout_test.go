package pptx

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLayoutName(t *testing.T) {
	cases := map[string]string{
		"Diapositive de Titre":   "diapositivedetitre",
		"Liste_des-Participants": "listedesparticipants",
		"  Thème   principal ":   "themeprincipal",
		"Polling Question":       "pollingquestion",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLayoutName(in), in)
	}
}

func TestFindLayout(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 1, layoutNames: []string{"Diapositive de titre", "Titre et contenu", "Vide"}})
	inv, err := Inspect(pkg, zerolog.Nop())
	require.NoError(t, err)

	layout, ok := inv.FindLayout("", LayoutCategoryTitle)
	require.True(t, ok)
	assert.Equal(t, LayoutPart(1), layout.Part)

	layout, ok = inv.FindLayout("", LayoutCategoryParticipants)
	require.True(t, ok)
	assert.Equal(t, LayoutPart(2), layout.Part)

	layout, ok = inv.FindLayout("vide", LayoutCategoryParticipants)
	require.True(t, ok)
	assert.Equal(t, LayoutPart(3), layout.Part)

	empty := openTemplate(t, templateOptions{slides: 1, layoutNames: []string{"Blank"}})
	inv, err = Inspect(empty, zerolog.Nop())
	require.NoError(t, err)
	_, ok = inv.FindLayout("Couverture", LayoutCategoryTitle)
	assert.False(t, ok)
}

func TestEnsurePollingLayoutSynthesizesOnce(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 1})
	inv, err := Inspect(pkg, zerolog.Nop())
	require.NoError(t, err)

	layout, created, err := EnsurePollingLayout(pkg, inv, "", zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, LayoutPart(3), layout.Part)
	assert.Equal(t, "rId4", layout.MasterRelID)
	assert.True(t, pkg.Has(RelsPartFor(layout.Part)))

	masterRels, _, err := pkg.Relationships(layout.MasterPart)
	require.NoError(t, err)
	linked, ok := masterRels.Get("rId4")
	require.True(t, ok)
	assert.Equal(t, "../slideLayouts/slideLayout3.xml", linked.Target)

	master, err := pkg.ReadXML(layout.MasterPart)
	require.NoError(t, err)
	entries := childElement(master.Root(), "p", "sldLayoutIdLst").ChildElements()
	require.Len(t, entries, 3)
	assert.Equal(t, "2147483651", entries[2].SelectAttrValue("id", ""))
	assert.Equal(t, "rId4", entries[2].SelectAttrValue("r:id", ""))

	again, created, err := EnsurePollingLayout(pkg, inv, DefaultPollingLayoutName, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, layout.Part, again.Part)
}
