package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	factory := func(DBTX) EntityImporter { return &recordingImporter{} }
	Register(ImporterDefinition{Info: ImporterInfo{Key: "zeta", Label: "Zeta"}, New: factory})
	Register(ImporterDefinition{Info: ImporterInfo{Key: "alpha", Label: "Alpha"}, New: factory})

	assert.Equal(t, 2, ImporterCount())

	all := All()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Info.Key)
	assert.Equal(t, "zeta", all[1].Info.Key)

	def, err := Lookup("zeta")
	require.NoError(t, err)
	assert.Equal(t, "Zeta", def.Info.Label)

	_, err = Lookup("missing")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestRegister_Panics(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	factory := func(DBTX) EntityImporter { return &recordingImporter{} }

	assert.Panics(t, func() { Register(ImporterDefinition{New: factory}) })
	assert.Panics(t, func() { Register(ImporterDefinition{Info: ImporterInfo{Key: "x"}}) })

	Register(ImporterDefinition{Info: ImporterInfo{Key: "x"}, New: factory})
	assert.Panics(t, func() { Register(ImporterDefinition{Info: ImporterInfo{Key: "x"}, New: factory}) })
}
