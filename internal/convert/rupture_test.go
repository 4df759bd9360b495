package convert

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeworks/srcmodel/internal/geo"
)

const planarBlock = `    planar_surface {
      top_left {
        lon   = -124.1
        lat   = 40.4
        depth = 5.0
      }

      top_right {
        lon   = -123.9
        lat   = 40.4
        depth = 5.0
      }

      bottom_right {
        lon   = -123.9
        lat   = 40.3
        depth = 15.0
      }

      bottom_left {
        lon   = -124.1
        lat   = 40.3
        depth = 15.0
      }
    }`

const hypoBlock = `  hypocenter {
    lon   = -122.0
    lat   = 38.0
    depth = 15.0
  }`

func sesRupture(id, events string) string {
	return fmt.Sprintf(`
  single_plane_rupture %q {
    magnitude = 5.5
    rake      = 0.0

%s

%s

    stochastic_event_sets {
%s
    }
  }
`, id, hypoBlock, planarBlock, events)
}

func TestRuptureConverter(t *testing.T) {
	rc := NewRuptureConverter(0, 0)

	t.Run("simple fault rupture", func(t *testing.T) {
		src := `
simple_fault_rupture "1" {
  magnitude = 7.65
  rake      = 15.0

` + hypoBlock + `

  simple_fault_geometry {
    pos_list           = [-124.704, 40.363, -124.977, 41.214]
    dip                = 50.0
    upper_seismo_depth = 12.5
    lower_seismo_depth = 19.5
  }
}
`
		rup, err := rc.ConvertNode(parseOne(t, src))
		require.NoError(t, err)
		assert.Equal(t, 7.65, rup.Mag)
		assert.Equal(t, 15.0, rup.Rake)
		assert.Equal(t, geo.Point{Lon: -122, Lat: 38, Depth: 15}, rup.Hypocenter)

		surf, ok := rup.Surface.(*geo.SimpleFaultSurface)
		require.True(t, ok)
		assert.Equal(t, 50.0, surf.Dip)
		assert.Equal(t, DefaultRuptureMeshSpacing, surf.MeshSpacing)
	})

	t.Run("complex fault rupture at its own spacing", func(t *testing.T) {
		src := `
complex_fault_rupture "1" {
  magnitude = 8.1
  rake      = 90.0

` + hypoBlock + `

  complex_fault_geometry {
    fault_top_edge {
      pos_list = [-124.704, 40.363, 5.49, -124.977, 41.214, 4.99]
    }

    fault_bottom_edge {
      pos_list = [-123.829, 40.347, 21.74, -124.137, 41.218, 22.87]
    }
  }
}
`
		rup, err := NewRuptureConverter(5, 10).ConvertNode(parseOne(t, src))
		require.NoError(t, err)
		surf, ok := rup.Surface.(*geo.ComplexFaultSurface)
		require.True(t, ok)
		assert.Len(t, surf.Edges, 2)
		assert.Equal(t, 10.0, surf.MeshSpacing)
	})

	t.Run("a single plane still becomes a multi surface", func(t *testing.T) {
		src := `
single_plane_rupture "1" {
  magnitude = 6.0
  rake      = 0.0

` + hypoBlock + `

` + planarBlock + `
}
`
		rup, err := rc.ConvertNode(parseOne(t, src))
		require.NoError(t, err)
		ms, ok := rup.Surface.(*geo.MultiSurface)
		require.True(t, ok)
		assert.Len(t, ms.Surfaces, 1)
	})

	t.Run("several planes form one multi surface", func(t *testing.T) {
		src := `
multi_planes_rupture "1" {
  magnitude = 6.9
  rake      = 0.0

` + hypoBlock + `

` + planarBlock + `

` + planarBlock + `
}
`
		rup, err := rc.ConvertNode(parseOne(t, src))
		require.NoError(t, err)
		ms, ok := rup.Surface.(*geo.MultiSurface)
		require.True(t, ok)
		assert.Len(t, ms.Surfaces, 2)
	})

	t.Run("gridded rupture", func(t *testing.T) {
		src := `
gridded_rupture "1" {
  magnitude = 6.5
  rake      = 0.0

` + hypoBlock + `

  gridded_surface {
    pos_list = [-124.0, 40.5, 10.0, -124.1, 40.5, 10.0, -124.1, 40.6, 12.0]
  }
}
`
		rup, err := rc.ConvertNode(parseOne(t, src))
		require.NoError(t, err)
		gs, ok := rup.Surface.(*geo.GriddedSurface)
		require.True(t, ok)
		assert.Len(t, gs.Points, 3)
	})

	t.Run("rejects a non-positive magnitude", func(t *testing.T) {
		src := `
single_plane_rupture "1" {
  magnitude = 0.0
  rake      = 0.0

` + hypoBlock + `

` + planarBlock + `
}
`
		_, err := rc.ConvertNode(parseOne(t, src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	})

	t.Run("needs its hypocenter", func(t *testing.T) {
		src := `
single_plane_rupture "1" {
  magnitude = 6.0
  rake      = 0.0

` + planarBlock + `
}
`
		_, err := rc.ConvertNode(parseOne(t, src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing hypocenter block")
	})

	t.Run("unknown rupture tag", func(t *testing.T) {
		_, err := rc.ConvertNode(parseOne(t, `other_rupture "1" {}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown rupture tag")
	})
}

func TestConvertRuptureCollection(t *testing.T) {
	rc := NewRuptureConverter(0, 0)

	t.Run("counts occurrences over the event sets", func(t *testing.T) {
		src := `
rupture_collection {
  rup_group "0" {
` + sesRupture("11", `      ses "1" {
        events = "1 2 4"
      }

      ses "2" {
        events = "7"
      }`) + `  }

  rup_group "2" {
` + sesRupture("12", `      ses "1" {
        events = "3"
      }`) + `  }
}
`
		coll, err := rc.ConvertRuptureCollection(parseOne(t, src))
		require.NoError(t, err)
		require.Len(t, coll, 2)

		require.Len(t, coll[0], 1)
		assert.Equal(t, 11, coll[0][0].ID)
		assert.Equal(t, 4, coll[0][0].NumOccurrences)
		assert.Equal(t, 5.5, coll[0][0].Rup.Mag)

		require.Len(t, coll[2], 1)
		assert.Equal(t, 12, coll[2][0].ID)
		assert.Equal(t, 1, coll[2][0].NumOccurrences)
	})

	t.Run("rejects duplicated group ids", func(t *testing.T) {
		one := sesRupture("1", `      ses "1" {
        events = "1"
      }`)
		src := `
rupture_collection {
  rup_group "3" {
` + one + `  }

  rup_group "3" {
` + one + `  }
}
`
		_, err := rc.ConvertRuptureCollection(parseOne(t, src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicated group id 3")
	})

	t.Run("group ids must be integral", func(t *testing.T) {
		src := `
rupture_collection {
  rup_group "g1" {
  }
}
`
		_, err := rc.ConvertRuptureCollection(parseOne(t, src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `group id "g1" is not an integer`)
	})

	t.Run("rupture ids must be integral", func(t *testing.T) {
		src := `
rupture_collection {
  rup_group "0" {
` + sesRupture("r9", `      ses "1" {
        events = "1"
      }`) + `  }
}
`
		_, err := rc.ConvertRuptureCollection(parseOne(t, src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `rupture id "r9" is not an integer`)
	})
}
