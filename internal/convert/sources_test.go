package convert

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeworks/srcmodel/internal/geo"
	"github.com/quakeworks/srcmodel/internal/mfd"
	"github.com/quakeworks/srcmodel/internal/source"
)

func areaSrc(geomExtra string) string {
	return fmt.Sprintf(`
area_source "a1" {
  name              = "area"
  tectonic_region   = "Active Shallow Crust"
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
%s
  }

  incremental_mfd {
    min_mag     = 6.55
    bin_width   = 0.1
    occur_rates = [0.0010614989, 0.00088291627, 0.00073437777]
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
`, geomExtra)
}

func multiPointSrc(geomAttrs, mfdBlock string) string {
	return fmt.Sprintf(`
multi_point_source "mp1" {
  name              = "multi point"
  tectonic_region   = "Active Shallow Crust"
  mag_scale_rel     = "WC1994"
  rupt_aspect_ratio = 1.0

  multi_point_geometry {
    pos_list = [-122.0, 38.0, -121.0, 38.0, -120.0, 38.0]
%s
  }

%s

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
`, geomAttrs, mfdBlock)
}

const flatDepths = `    upper_seismo_depth = 0.0
    lower_seismo_depth = [10.0, 12.0, 14.0]`

const incrementalMulti = `  multi_mfd {
    kind        = "incremental_mfd"
    size        = 3
    min_mag     = 4.5
    bin_width   = 0.1
    occur_rates = [0.1, 0.2, 0.3, 0.4, 0.5, 0.6]
    lengths     = 2
  }`

const simpleFaultSrc = `
simple_fault_source "sf1" {
  name              = "simple fault"
  tectonic_region   = "Active Shallow Crust"
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
`

func complexFaultSrc(edges string) string {
	return fmt.Sprintf(`
complex_fault_source "cf1" {
  name              = "complex fault"
  tectonic_region   = "Subduction Interface"
  mag_scale_rel     = "WC1994"
  rupt_aspect_ratio = 1.5
  rake              = 30.0

  complex_fault_geometry {
%s
  }

  incremental_mfd {
    min_mag     = 6.5
    bin_width   = 0.1
    occur_rates = [0.01, 0.005]
  }
}
`, edges)
}

const orderedEdges = `    fault_top_edge {
      pos_list = [-124.704, 40.363, 5.49, -124.977, 41.214, 4.99]
    }

    intermediate_edge {
      pos_list = [-124.704, 40.363, 10.1, -124.977, 41.214, 10.4]
    }

    fault_bottom_edge {
      pos_list = [-123.829, 40.347, 21.74, -124.137, 41.218, 22.87]
    }`

func charSrc(surface string) string {
	return fmt.Sprintf(`
characteristic_fault_source "char1" {
  name            = "characteristic"
  tectonic_region = "Volcanic"
  rake            = 30.0

  incremental_mfd {
    min_mag     = 6.8
    bin_width   = 0.1
    occur_rates = [0.001]
  }

  surface {
%s
  }
}
`, surface)
}

func npSrc(extra string) string {
	return fmt.Sprintf(`
non_parametric_source "np1" {
  name            = "non parametric"
  tectonic_region = "Subduction Interface"
%s
  single_plane_rupture {
    magnitude   = 7.0
    rake        = 90.0
    probs_occur = [0.95, 0.05]

    hypocenter {
      lon   = -124.0
      lat   = 40.4
      depth = 10.0
    }
%s
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
`, extra, planarBlock)
}

func TestConvertPointSource(t *testing.T) {
	ctx := context.Background()

	t.Run("builds the source with its distributions", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, pointSrc("p1", `tectonic_region = "Active Shallow Crust"`)))
		require.NoError(t, err)
		ps, ok := got.(*source.PointSource)
		require.True(t, ok)

		assert.Equal(t, "p1", ps.ID())
		assert.Equal(t, "point p1", ps.Name())
		assert.Equal(t, "Active Shallow Crust", ps.TRT())
		assert.Equal(t, geo.Point{Lon: -122, Lat: 38}, ps.Location)
		assert.Equal(t, 0.0, ps.UpperSeismoDepth)
		assert.Equal(t, 10.0, ps.LowerSeismoDepth)
		assert.Equal(t, 2, ps.NodalPlaneDist.Len())
		assert.Equal(t, 1, ps.HypoDepthDist.Len())
		assert.Equal(t, "WC1994", ps.MagScaleRel.Name())
		assert.Equal(t, 1.5, ps.RuptAspectRatio)
		assert.Equal(t, DefaultRuptureMeshSpacing, ps.MeshSpacing)

		gr, ok := ps.MFD.(*mfd.TruncatedGR)
		require.True(t, ok)
		assert.Equal(t, DefaultWidthOfMFDBin, gr.BinWidth)
	})

	t.Run("defaults to a poisson occurrence model", func(t *testing.T) {
		c := NewSourceConverter(Params{InvestigationTime: 30})
		got, err := c.ConvertNode(ctx, parseOne(t, pointSrc("p1")))
		require.NoError(t, err)
		tm := got.(*source.PointSource).TOM
		assert.Equal(t, "poisson", tm.Name())
		assert.Equal(t, 30.0, tm.TimeSpan())
	})

	t.Run("honors a declared occurrence model", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, pointSrc("p1",
			`tom = "negative_binomial"`, `occurrence_rate = 0.2`)))
		require.NoError(t, err)
		tm := got.(*source.PointSource).TOM
		assert.Equal(t, "negative_binomial", tm.Name())
		rate, ok := tm.OccurrenceRate()
		require.True(t, ok)
		assert.Equal(t, 0.2, rate)
	})

	t.Run("needs its id label", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, `point_source {}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing source id label")
	})

	t.Run("rejects more than one location", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		src := `
point_source "p1" {
  name              = "two points"
  mag_scale_rel     = "WC1994"
  rupt_aspect_ratio = 1.0

  point_geometry {
    pos                = [-122.0, 38.0, -121.0, 38.0]
    upper_seismo_depth = 0.0
    lower_seismo_depth = 10.0
  }
}
`
		_, err := c.ConvertNode(ctx, parseOne(t, src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected a single lon/lat pair")
	})

	t.Run("unknown scaling relation", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, pointSrc("p1", `mag_scale_rel = "Nope1999"`)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mag_scale_rel")
	})
}

func TestConvertAreaSource(t *testing.T) {
	ctx := context.Background()

	t.Run("builds the polygon at its own discretization", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, areaSrc("    discretization     = 10.0")))
		require.NoError(t, err)
		as, ok := got.(*source.AreaSource)
		require.True(t, ok)

		assert.Equal(t, 10.0, as.Discretization)
		assert.Len(t, as.Polygon.Points, 4) // closing point stripped
		assert.Equal(t, geo.Point{Lon: -122.5, Lat: 37.5}, as.Polygon.Points[0])

		inc, ok := as.MFD.(*mfd.EvenlyDiscretized)
		require.True(t, ok)
		assert.Equal(t, 6.55, inc.MinMag)
	})

	t.Run("falls back to the converter discretization", func(t *testing.T) {
		c := NewSourceConverter(Params{AreaDiscretization: 7.5})
		got, err := c.ConvertNode(ctx, parseOne(t, areaSrc("")))
		require.NoError(t, err)
		assert.Equal(t, 7.5, got.(*source.AreaSource).Discretization)
	})

	t.Run("fails without any discretization", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, areaSrc("")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no default area discretization")
	})
}

func TestConvertMultiPointSource(t *testing.T) {
	ctx := context.Background()

	t.Run("couples the mesh with a per-point distribution", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, multiPointSrc(flatDepths, incrementalMulti)))
		require.NoError(t, err)
		mps, ok := got.(*source.MultiPointSource)
		require.True(t, ok)

		assert.Equal(t, 3, mps.Mesh.Len())
		assert.Equal(t, 3, mps.MFD.Len())
		assert.Equal(t, []float64{0.0}, mps.UpperSeismoDepths)
		assert.Equal(t, []float64{10, 12, 14}, mps.LowerSeismoDepths)

		sub, ok := mps.MFD.At(0).(*mfd.EvenlyDiscretized)
		require.True(t, ok)
		assert.Equal(t, []float64{0.1, 0.2}, sub.OccurRates)
	})

	t.Run("the distribution must cover the mesh", func(t *testing.T) {
		smaller := `  multi_mfd {
    kind        = "incremental_mfd"
    size        = 2
    min_mag     = 4.5
    bin_width   = 0.1
    occur_rates = [0.1, 0.2, 0.3, 0.4]
    lengths     = 2
  }`
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, multiPointSrc(flatDepths, smaller)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multi_mfd of size 2 against 3 mesh points")
	})

	t.Run("needs a multi_mfd block", func(t *testing.T) {
		gr := `  trunc_gutenberg_richter_mfd {
    a_value = 3.6
    b_value = 1.0
    min_mag = 5.0
    max_mag = 6.5
  }`
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, multiPointSrc(flatDepths, gr)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "needs a multi_mfd block")
	})

	t.Run("per-point depths must cover the mesh", func(t *testing.T) {
		short := `    upper_seismo_depth = 0.0
    lower_seismo_depth = [10.0, 12.0]`
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, multiPointSrc(short, incrementalMulti)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "want 1 or 3")
	})

	t.Run("depths must stay ordered at every point", func(t *testing.T) {
		inverted := `    upper_seismo_depth = 15.0
    lower_seismo_depth = [10.0, 20.0, 20.0]`
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, multiPointSrc(inverted, incrementalMulti)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "above the upper one")
	})
}

func TestConvertSimpleFaultSource(t *testing.T) {
	ctx := context.Background()

	t.Run("builds the fault surface and hypocenter lists", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, simpleFaultSrc))
		require.NoError(t, err)
		sf, ok := got.(*source.SimpleFaultSource)
		require.True(t, ok)

		assert.Equal(t, 30.0, sf.Rake)
		assert.Equal(t, 45.0, sf.Surface.Dip)
		assert.Equal(t, 10.0, sf.Surface.UpperDepth)
		assert.Equal(t, 20.0, sf.Surface.LowerDepth)
		assert.Equal(t, DefaultRuptureMeshSpacing, sf.Surface.MeshSpacing)
		assert.Len(t, sf.Surface.Trace.Points, 2)
		assert.Len(t, sf.HypoList, 2)
		assert.Len(t, sf.SlipList, 2)
	})

	t.Run("rejects a rake off the scale", func(t *testing.T) {
		src := `
simple_fault_source "sf2" {
  name              = "bad rake"
  mag_scale_rel     = "WC1994"
  rupt_aspect_ratio = 1.0
  rake              = -200.0

  simple_fault_geometry {
    pos_list           = [-121.8229, 37.7301, -122.0388, 37.8771]
    dip                = 45.0
    upper_seismo_depth = 10.0
    lower_seismo_depth = 20.0
  }
}
`
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})
}

func TestConvertComplexFaultSource(t *testing.T) {
	ctx := context.Background()

	t.Run("meshes the edges at the complex spacing", func(t *testing.T) {
		c := NewSourceConverter(Params{RuptureMeshSpacing: 5, ComplexFaultMeshSpacing: 10})
		got, err := c.ConvertNode(ctx, parseOne(t, complexFaultSrc(orderedEdges)))
		require.NoError(t, err)
		cf, ok := got.(*source.ComplexFaultSource)
		require.True(t, ok)

		assert.Len(t, cf.Surface.Edges, 3)
		assert.Equal(t, 10.0, cf.Surface.MeshSpacing)
		assert.Equal(t, 30.0, cf.Rake)
	})

	t.Run("edges must keep their order", func(t *testing.T) {
		swapped := `    intermediate_edge {
      pos_list = [-124.704, 40.363, 10.1, -124.977, 41.214, 10.4]
    }

    fault_top_edge {
      pos_list = [-124.704, 40.363, 5.49, -124.977, 41.214, 4.99]
    }

    fault_bottom_edge {
      pos_list = [-123.829, 40.347, 21.74, -124.137, 41.218, 22.87]
    }`
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, complexFaultSrc(swapped)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "first edge must be the fault_top_edge")
	})

	t.Run("rejects foreign blocks in the geometry", func(t *testing.T) {
		bad := `    fault_top_edge {
      pos_list = [-124.704, 40.363, 5.49, -124.977, 41.214, 4.99]
    }

    weird_edge {
      pos_list = [-123.829, 40.347, 21.74, -124.137, 41.218, 22.87]
    }`
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, complexFaultSrc(bad)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected block in a complex fault geometry")
	})
}

func TestConvertCharacteristicFaultSource(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a simple fault surface", func(t *testing.T) {
		surface := `    simple_fault_geometry {
      pos_list           = [-121.8229, 37.7301, -122.0388, 37.8771]
      dip                = 45.0
      upper_seismo_depth = 10.0
      lower_seismo_depth = 20.0
    }`
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, charSrc(surface)))
		require.NoError(t, err)
		cs, ok := got.(*source.CharacteristicFaultSource)
		require.True(t, ok)
		assert.Equal(t, geo.KindSimpleFault, cs.Surface.Kind())
	})

	t.Run("a single plane still forms a multi surface", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, charSrc(planarBlock)))
		require.NoError(t, err)
		surf := got.(*source.CharacteristicFaultSource).Surface
		ms, ok := surf.(*geo.MultiSurface)
		require.True(t, ok)
		assert.Len(t, ms.Surfaces, 1)
	})

	t.Run("the surface block cannot be empty", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, charSrc("")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing surface geometry")
	})
}

func TestConvertNonParametricSource(t *testing.T) {
	ctx := context.Background()

	t.Run("collects the ruptures with their occurrence counts", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, npSrc("")))
		require.NoError(t, err)
		np, ok := got.(*source.NonParametric)
		require.True(t, ok)

		require.Equal(t, 2, np.NumRuptures())
		assert.Equal(t, 7.0, np.Data[0].Rup.Mag)
		assert.Equal(t, "Subduction Interface", np.Data[0].Rup.TRT)
		assert.Equal(t, geo.KindMulti, np.Data[0].Rup.Surface.Kind())
		assert.Equal(t, geo.KindGridded, np.Data[1].Rup.Surface.Kind())
		assert.Equal(t, 2, np.Data[0].ProbsOccur.Len())
		assert.True(t, np.Splittable())
	})

	t.Run("rupture weights pin the source together", func(t *testing.T) {
		c := NewSourceConverter(Params{})
		got, err := c.ConvertNode(ctx, parseOne(t, npSrc("  rup_weights = [0.6, 0.4]\n")))
		require.NoError(t, err)
		np := got.(*source.NonParametric)
		assert.False(t, np.Splittable())
		require.NotNil(t, np.Data[0].Rup.Weight)
		assert.Equal(t, 0.6, *np.Data[0].Rup.Weight)
	})

	t.Run("occurrence vectors must agree in length", func(t *testing.T) {
		src := `
non_parametric_source "np2" {
  name = "mismatched"

  gridded_rupture {
    magnitude   = 6.5
    rake        = 0.0
    probs_occur = [0.95, 0.05]

    hypocenter {
      lon   = -124.0
      lat   = 40.5
      depth = 12.0
    }

    gridded_surface {
      pos_list = [-124.0, 40.5, 10.0]
    }
  }

  gridded_rupture {
    magnitude   = 6.0
    rake        = 0.0
    probs_occur = [0.9, 0.05, 0.05]

    hypocenter {
      lon   = -124.0
      lat   = 40.5
      depth = 12.0
    }

    gridded_surface {
      pos_list = [-124.0, 40.5, 10.0]
    }
  }
}
`
		c := NewSourceConverter(Params{})
		_, err := c.ConvertNode(ctx, parseOne(t, src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "probs_occur has 3 values, expected 2")
	})
}
