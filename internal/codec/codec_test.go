package codec

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeworks/srcmodel/internal/convert"
	"github.com/quakeworks/srcmodel/internal/mfd"
	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/source"
)

const allKindsGroup = `
source_group "g" {
  tectonic_region = "Active Shallow Crust"
  name            = "every kind"

  point_source "p1" {
    name              = "point"
    mag_scale_rel     = "WC1994"
    rupt_aspect_ratio = 1.5

    point_geometry {
      pos                = [-122.0, 38.0]
      upper_seismo_depth = 0.0
      lower_seismo_depth = 10.0
    }

    trunc_gutenberg_richter_mfd {
      a_value = 3.6
      b_value = 1.0
      min_mag = 5.0
      max_mag = 6.5
    }

    nodal_plane_dist {
      nodal_plane {
        probability = 0.3
        strike      = 0.0
        dip         = 90.0
        rake        = 0.0
      }

      nodal_plane {
        probability = 0.7
        strike      = 90.0
        dip         = 45.0
        rake        = 90.0
      }
    }

    hypo_depth_dist {
      hypo_depth {
        probability = 1.0
        depth       = 4.0
      }
    }
  }

  area_source "a1" {
    name              = "area"
    mag_scale_rel     = "WC1994"
    rupt_aspect_ratio = 1.0

    area_geometry {
      pos_list = [
        -122.5, 37.5,
        -121.5, 37.5,
        -121.5, 38.5,
        -122.5, 38.5,
        -122.5, 37.5
      ]
      upper_seismo_depth = 0.0
      lower_seismo_depth = 10.0
      discretization     = 10.0
    }

    arbitrary_mfd {
      magnitudes  = [5.2, 6.1, 6.8]
      occur_rates = [0.001, 0.0005, 0.0001]
    }

    nodal_plane_dist {
      nodal_plane {
        probability = 1.0
        strike      = 0.0
        dip         = 90.0
        rake        = 0.0
      }
    }

    hypo_depth_dist {
      hypo_depth {
        probability = 1.0
        depth       = 5.0
      }
    }
  }

  multi_point_source "mp1" {
    name              = "multi point"
    mag_scale_rel     = "WC1994"
    rupt_aspect_ratio = 1.0

    multi_point_geometry {
      pos_list           = [-122.0, 38.0, -121.0, 38.0, -120.0, 38.0]
      upper_seismo_depth = 0.0
      lower_seismo_depth = [10.0, 12.0, 14.0]
    }

    multi_mfd {
      kind        = "incremental_mfd"
      size        = 3
      min_mag     = 4.5
      bin_width   = 0.1
      occur_rates = [0.1, 0.2, 0.3, 0.4, 0.5, 0.6]
      lengths     = 2
    }

    nodal_plane_dist {
      nodal_plane {
        probability = 1.0
        strike      = 0.0
        dip         = 90.0
        rake        = 0.0
      }
    }

    hypo_depth_dist {
      hypo_depth {
        probability = 1.0
        depth       = 5.0
      }
    }
  }

  simple_fault_source "sf1" {
    name              = "simple fault"
    mag_scale_rel     = "WC1994"
    rupt_aspect_ratio = 1.5
    rake              = 30.0
    hypo_list         = [[0.25, 0.25, 0.3], [0.75, 0.75, 0.7]]
    slip_list         = [[90.0, 0.7], [135.0, 0.3]]

    simple_fault_geometry {
      pos_list           = [-121.8229, 37.7301, -122.0388, 37.8771]
      dip                = 45.0
      upper_seismo_depth = 10.0
      lower_seismo_depth = 20.0
    }

    incremental_mfd {
      min_mag     = 5.0
      bin_width   = 0.1
      occur_rates = [0.0010614989, 0.00088291627]
    }
  }

  complex_fault_source "cf1" {
    name              = "complex fault"
    mag_scale_rel     = "WC1994"
    rupt_aspect_ratio = 1.5
    rake              = 30.0

    complex_fault_geometry {
      fault_top_edge {
        pos_list = [-124.704, 40.363, 5.49, -124.977, 41.214, 4.99]
      }

      fault_bottom_edge {
        pos_list = [-123.829, 40.347, 21.74, -124.137, 41.218, 22.87]
      }
    }

    incremental_mfd {
      min_mag     = 6.5
      bin_width   = 0.1
      occur_rates = [0.01, 0.005]
    }
  }

  characteristic_fault_source "ch1" {
    name = "characteristic"
    rake = 30.0

    youngs_coppersmith_mfd {
      min_mag             = 5.0
      b_value             = 1.0
      characteristic_mag  = 6.75
      characteristic_rate = 0.001
      bin_width           = 0.25
    }

    surface {
      planar_surface {
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
      }

      planar_surface {
        top_left {
          lon   = -123.9
          lat   = 40.4
          depth = 5.0
        }

        top_right {
          lon   = -123.7
          lat   = 40.4
          depth = 5.0
        }

        bottom_right {
          lon   = -123.7
          lat   = 40.3
          depth = 15.0
        }

        bottom_left {
          lon   = -123.9
          lat   = 40.3
          depth = 15.0
        }
      }
    }
  }

  non_parametric_source "np1" {
    name = "non parametric"

    single_plane_rupture {
      magnitude   = 7.0
      rake        = 90.0
      probs_occur = [0.95, 0.05]

      hypocenter {
        lon   = -124.0
        lat   = 40.4
        depth = 10.0
      }

      planar_surface {
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
      }
    }

    gridded_rupture {
      magnitude   = 6.5
      rake        = 0.0
      probs_occur = [0.98, 0.02]

      hypocenter {
        lon   = -124.0
        lat   = 40.5
        depth = 12.0
      }

      gridded_surface {
        pos_list = [-124.0, 40.5, 10.0, -124.1, 40.5, 10.0, -124.1, 40.6, 12.0]
      }
    }
  }
}
`

const grMultiGroup = `
source_group "g" {
  tectonic_region = "Active Shallow Crust"

  multi_point_source "mp1" {
    name              = "gutenberg richter grid"
    mag_scale_rel     = "WC1994"
    rupt_aspect_ratio = 1.0

    multi_point_geometry {
      pos_list           = [-122.0, 38.0, -121.0, 38.0, -120.0, 38.0]
      upper_seismo_depth = 0.0
      lower_seismo_depth = 10.0
    }

    multi_mfd {
      kind    = "trunc_gutenberg_richter_mfd"
      size    = 3
      min_mag = 5.0
      a_value = 3.6
      b_value = 1.0
      max_mag = [7.0, 7.5, 8.0]
    }

    nodal_plane_dist {
      nodal_plane {
        probability = 1.0
        strike      = 0.0
        dip         = 90.0
        rake        = 0.0
      }
    }

    hypo_depth_dist {
      hypo_depth {
        probability = 1.0
        depth       = 5.0
      }
    }
  }
}
`

func pointBlock(id string) string {
	return fmt.Sprintf(`
  point_source %q {
    name              = "point %s"
    mag_scale_rel     = "WC1994"
    rupt_aspect_ratio = 1.5

    point_geometry {
      pos                = [-122.0, 38.0]
      upper_seismo_depth = 0.0
      lower_seismo_depth = 10.0
    }

    trunc_gutenberg_richter_mfd {
      a_value = 3.6
      b_value = 1.0
      min_mag = 5.0
      max_mag = 6.5
    }

    nodal_plane_dist {
      nodal_plane {
        probability = 1.0
        strike      = 0.0
        dip         = 90.0
        rake        = 0.0
      }
    }

    hypo_depth_dist {
      hypo_depth {
        probability = 1.0
        depth       = 4.0
      }
    }
  }
`, id, id)
}

func parseGroup(t *testing.T, src string) *source.Group {
	t.Helper()
	nodes, err := sml.Parse([]byte(src), "codec_test.hcl")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	g, err := convert.NewSourceConverter(convert.Params{}).ConvertSourceGroup(context.Background(), nodes[0])
	require.NoError(t, err)
	return g
}

func encodeDecode(t *testing.T, g *source.Group) *source.Group {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeGroup(&buf, g))
	got, err := DecodeGroup(&buf)
	require.NoError(t, err)
	return got
}

// sourceOpts lets cmp look into the unexported parts of the domain types
// while tolerating float noise on reconstructed values.
var sourceOpts = cmp.Options{
	cmp.Exporter(func(reflect.Type) bool { return true }),
	cmpopts.EquateApprox(1e-12, 1e-12),
}

func TestRoundTrip(t *testing.T) {
	t.Run("every source kind survives the trip", func(t *testing.T) {
		want := parseGroup(t, allKindsGroup)
		got := encodeDecode(t, want)

		assert.Equal(t, want.TRT(), got.TRT())
		assert.Equal(t, want.Name(), got.Name())
		require.Equal(t, want.Len(), got.Len())
		for i, src := range want.Sources() {
			if diff := cmp.Diff(src, got.Sources()[i], sourceOpts); diff != "" {
				t.Errorf("source %s mismatch (-want +got):\n%s", src.ID(), diff)
			}
		}
	})

	t.Run("group scalars come back as written", func(t *testing.T) {
		want := parseGroup(t, `
source_group "g" {
  tectonic_region = "Stable Continental"
  name            = "weighted pair"
  src_interdep    = "mutex"
  srcs_weights    = [0.4, 0.6]
  grp_probability = 0.7
`+pointBlock("p1")+pointBlock("p2")+`
}
`)
		got := encodeDecode(t, want)

		assert.Equal(t, "Stable Continental", got.TRT())
		assert.Equal(t, "weighted pair", got.Name())
		assert.Equal(t, source.Mutex, got.SrcInterdep())
		assert.Equal(t, source.Indep, got.RupInterdep())
		p, ok := got.GrpProbability()
		require.True(t, ok)
		assert.Equal(t, 0.7, p)

		w, ok := got.Sources()[0].MutexWeight()
		require.True(t, ok)
		assert.Equal(t, 0.4, w)
		w, ok = got.Sources()[1].MutexWeight()
		require.True(t, ok)
		assert.Equal(t, 0.6, w)
	})

	t.Run("pinned ruptures stay pinned", func(t *testing.T) {
		want := parseGroup(t, `
source_group "g" {
  tectonic_region = "Subduction Interface"
  rup_interdep    = "mutex"

  non_parametric_source "np1" {
    name        = "pinned"
    rup_weights = [1.0]

    gridded_rupture {
      magnitude   = 6.5
      rake        = 0.0
      probs_occur = [0.98, 0.02]

      hypocenter {
        lon   = -124.0
        lat   = 40.5
        depth = 12.0
      }

      gridded_surface {
        pos_list = [-124.0, 40.5, 10.0, -124.1, 40.5, 10.0, -124.1, 40.6, 12.0]
      }
    }
  }
}
`)
		got := encodeDecode(t, want)

		assert.Equal(t, source.Mutex, got.RupInterdep())
		np, ok := got.Sources()[0].(*source.NonParametric)
		require.True(t, ok)
		assert.False(t, np.Splittable())
		require.NotNil(t, np.Data[0].Rup.Weight)
		assert.Equal(t, 1.0, *np.Data[0].Rup.Weight)
	})

	t.Run("a shared width gutenberg richter multi keeps it", func(t *testing.T) {
		want := parseGroup(t, grMultiGroup)
		got := encodeDecode(t, want)

		mp, ok := got.Sources()[0].(*source.MultiPointSource)
		require.True(t, ok)
		sub, ok := mp.MFD.At(2).(*mfd.TruncatedGR)
		require.True(t, ok)
		assert.Equal(t, 1.0, sub.BinWidth)
		assert.Equal(t, 8.0, sub.MaxMag)
		if diff := cmp.Diff(want.Sources()[0], got.Sources()[0], sourceOpts); diff != "" {
			t.Errorf("source mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("an empty group is still a valid file", func(t *testing.T) {
		want := parseGroup(t, `
source_group "g" {
  tectonic_region = "Stable Continental"
}
`)
		got := encodeDecode(t, want)
		assert.Equal(t, "Stable Continental", got.TRT())
		assert.Zero(t, got.Len())
	})

	t.Run("files round trip through the filesystem", func(t *testing.T) {
		want := parseGroup(t, allKindsGroup)
		path := filepath.Join(t.TempDir(), "group"+Extension)
		require.NoError(t, EncodeFile(path, want))
		got, err := DecodeFile(path)
		require.NoError(t, err)
		assert.Equal(t, want.Len(), got.Len())
	})
}

func TestDecodeErrors(t *testing.T) {
	encoded := func(t *testing.T) []byte {
		t.Helper()
		var buf bytes.Buffer
		require.NoError(t, EncodeGroup(&buf, parseGroup(t, allKindsGroup)))
		return buf.Bytes()
	}

	t.Run("foreign bytes are not a group", func(t *testing.T) {
		_, err := DecodeGroup(bytes.NewReader([]byte("PK\x03\x04 something else entirely")))
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("future format versions are refused", func(t *testing.T) {
		raw := encoded(t)
		raw[4] = 9
		_, err := DecodeGroup(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrVersion)
	})

	t.Run("a flipped record byte fails the checksum", func(t *testing.T) {
		raw := encoded(t)
		raw[len(raw)-9] ^= 0xff
		_, err := DecodeGroup(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("truncated input is reported", func(t *testing.T) {
		raw := encoded(t)
		_, err := DecodeGroup(bytes.NewReader(raw[:len(raw)-5]))
		assert.ErrorContains(t, err, "truncated")
	})

	t.Run("trailing bytes are rejected", func(t *testing.T) {
		raw := append(encoded(t), 0)
		_, err := DecodeGroup(bytes.NewReader(raw))
		assert.ErrorContains(t, err, "trailing")
	})

	t.Run("unknown source kinds are refused", func(t *testing.T) {
		_, err := decodeSource([]byte{payloadVersion, 42})
		assert.ErrorContains(t, err, "unknown source kind byte 42")
	})

	t.Run("unknown payload versions are refused", func(t *testing.T) {
		_, err := decodeSource([]byte{9, 1})
		assert.ErrorContains(t, err, "unsupported payload version 9")
	})
}
