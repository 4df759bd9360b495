package consolidate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeworks/srcmodel/internal/convert"
	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/source"
	"github.com/quakeworks/srcmodel/internal/valid"
)

func model(groups ...string) string {
	return "\nsource_model \"m\" {\n  name = \"model\"\n" +
		strings.Join(groups, "\n") + "\n}\n"
}

func group(attrs string, srcs ...string) string {
	return fmt.Sprintf(`  source_group "g" {
    tectonic_region = "Active Shallow Crust"
%s
%s
  }`, attrs, strings.Join(srcs, "\n"))
}

// pointSrc renders a point source whose grouping key is controlled by the
// scaling relation; the distributions are identical across all fixtures.
func pointSrc(id string, lon, lsd float64, msr, mfdBlock, extra string) string {
	return fmt.Sprintf(`
  point_source %q {
    name              = "point %s"
    mag_scale_rel     = %q
    rupt_aspect_ratio = 1.5
%s
    point_geometry {
      pos                = [%v, 38.0]
      upper_seismo_depth = 0.0
      lower_seismo_depth = %v
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
`, id, id, msr, extra, lon, lsd, mfdBlock)
}

func incMFD(rates string) string {
	return fmt.Sprintf(`    incremental_mfd {
      min_mag     = 4.5
      bin_width   = 0.1
      occur_rates = %s
    }`, rates)
}

func grMFD(maxMag float64) string {
	return fmt.Sprintf(`    trunc_gutenberg_richter_mfd {
      a_value = 3.6
      b_value = 1.0
      min_mag = 5.0
      max_mag = %v
    }`, maxMag)
}

func parseModel(t *testing.T, src string) *sml.Node {
	t.Helper()
	nodes, err := sml.Parse([]byte(src), "consolidate_test.hcl")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	return nodes[0]
}

func TestModel(t *testing.T) {
	t.Run("merges a run of compatible points", func(t *testing.T) {
		root := parseModel(t, model(group("",
			pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1, 0.2]"), ""),
			pointSrc("p2", -121.0, 10.0, "WC1994", incMFD("[0.3, 0.4]"), ""))))
		require.NoError(t, Model(root, "consolidate_test.hcl"))

		g := root.Children[0]
		require.Len(t, g.Children, 1)
		mps := g.Children[0]
		assert.Equal(t, "multi_point_source", mps.Tag)
		assert.Equal(t, "mps-0", mps.ID())

		name, err := valid.Str(mps, "name")
		require.NoError(t, err)
		assert.Equal(t, "multiPointSource-0", name)
		msr, err := valid.Str(mps, "mag_scale_rel")
		require.NoError(t, err)
		assert.Equal(t, "WC1994", msr)
		rar, err := valid.Float(mps, "rupt_aspect_ratio")
		require.NoError(t, err)
		assert.Equal(t, 1.5, rar)

		geom := mps.Child("multi_point_geometry")
		require.NotNil(t, geom)
		pos, err := valid.Pairs(geom, "pos_list")
		require.NoError(t, err)
		assert.Equal(t, [][2]float64{{-122, 38}, {-121, 38}}, pos)
		usd, err := valid.Float(geom, "upper_seismo_depth")
		require.NoError(t, err)
		assert.Equal(t, 0.0, usd)
		lsd, err := valid.Float(geom, "lower_seismo_depth")
		require.NoError(t, err)
		assert.Equal(t, 10.0, lsd)

		multi := mps.Child("multi_mfd")
		require.NotNil(t, multi)
		kind, err := valid.Str(multi, "kind")
		require.NoError(t, err)
		assert.Equal(t, "incremental_mfd", kind)
		size, err := valid.Int(multi, "size")
		require.NoError(t, err)
		assert.Equal(t, 2, size)
		rates, err := valid.FloatList(multi, "occur_rates")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, rates)
		length, err := valid.Float(multi, "lengths")
		require.NoError(t, err)
		assert.Equal(t, 2.0, length)

		require.NotNil(t, mps.Child("nodal_plane_dist"))
		assert.Len(t, mps.Child("nodal_plane_dist").Children, 1)
		require.NotNil(t, mps.Child("hypo_depth_dist"))
		assert.Len(t, mps.Child("hypo_depth_dist").Children, 1)
	})

	t.Run("a lone point passes through with its region stripped", func(t *testing.T) {
		root := parseModel(t, model(group("",
			pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"),
				`    tectonic_region   = "Active Shallow Crust"`))))
		require.NoError(t, Model(root, "consolidate_test.hcl"))

		g := root.Children[0]
		require.Len(t, g.Children, 1)
		p := g.Children[0]
		assert.Equal(t, "point_source", p.Tag)
		assert.Equal(t, "p1", p.ID())
		assert.False(t, p.HasAttr("tectonic_region"))
	})

	t.Run("different scaling relations never merge", func(t *testing.T) {
		root := parseModel(t, model(group("",
			pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"), ""),
			pointSrc("p2", -121.0, 10.0, "PeerMSR", incMFD("[0.2]"), ""))))
		require.NoError(t, Model(root, "consolidate_test.hcl"))

		g := root.Children[0]
		require.Len(t, g.Children, 2)
		assert.Equal(t, "p1", g.Children[0].ID())
		assert.Equal(t, "p2", g.Children[1].ID())
	})

	t.Run("heterogeneous depths stay per point", func(t *testing.T) {
		root := parseModel(t, model(group("",
			pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"), ""),
			pointSrc("p2", -121.0, 12.0, "WC1994", incMFD("[0.2]"), ""))))
		require.NoError(t, Model(root, "consolidate_test.hcl"))

		geom := root.Children[0].Children[0].Child("multi_point_geometry")
		require.NotNil(t, geom)
		lsd, err := valid.FloatList(geom, "lower_seismo_depth")
		require.NoError(t, err)
		assert.Equal(t, []float64{10, 12}, lsd)
		usd, err := valid.Float(geom, "upper_seismo_depth")
		require.NoError(t, err)
		assert.Equal(t, 0.0, usd)
	})

	t.Run("ragged rate rows keep their lengths", func(t *testing.T) {
		root := parseModel(t, model(group("",
			pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"), ""),
			pointSrc("p2", -121.0, 10.0, "WC1994", incMFD("[0.2, 0.3]"), ""))))
		require.NoError(t, Model(root, "consolidate_test.hcl"))

		multi := root.Children[0].Children[0].Child("multi_mfd")
		require.NotNil(t, multi)
		rates, err := valid.FloatList(multi, "occur_rates")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.1, 0.2, 0.3}, rates)
		lengths, err := valid.FloatList(multi, "lengths")
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, lengths)
	})

	t.Run("gutenberg-richter merges carry no bin width", func(t *testing.T) {
		root := parseModel(t, model(group("",
			pointSrc("p1", -122.0, 10.0, "WC1994", grMFD(7.0), ""),
			pointSrc("p2", -121.0, 10.0, "WC1994", grMFD(7.5), ""))))
		require.NoError(t, Model(root, "consolidate_test.hcl"))

		multi := root.Children[0].Children[0].Child("multi_mfd")
		require.NotNil(t, multi)
		assert.False(t, multi.HasAttr("bin_width"))
		assert.False(t, multi.HasAttr("lengths"))
		aVal, err := valid.Float(multi, "a_value")
		require.NoError(t, err)
		assert.Equal(t, 3.6, aVal)
		maxMags, err := valid.FloatList(multi, "max_mag")
		require.NoError(t, err)
		assert.Equal(t, []float64{7, 7.5}, maxMags)
	})

	t.Run("the id counter runs model-wide", func(t *testing.T) {
		root := parseModel(t, model(
			group("",
				pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"), ""),
				pointSrc("p2", -121.0, 10.0, "WC1994", incMFD("[0.2]"), "")),
			group("",
				pointSrc("p3", -120.0, 10.0, "WC1994", incMFD("[0.3]"), ""),
				pointSrc("p4", -119.0, 10.0, "WC1994", incMFD("[0.4]"), ""))))
		require.NoError(t, Model(root, "consolidate_test.hcl"))

		assert.Equal(t, "mps-0", root.Children[0].Children[0].ID())
		assert.Equal(t, "mps-1", root.Children[1].Children[0].ID())
	})

	t.Run("other sources sort by tag and id after the points", func(t *testing.T) {
		root := parseModel(t, model(group("",
			"  simple_fault_source \"z\" {\n  }",
			"  area_source \"a\" {\n  }",
			pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"), ""),
			pointSrc("p2", -121.0, 10.0, "WC1994", incMFD("[0.2]"), ""))))
		require.NoError(t, Model(root, "consolidate_test.hcl"))

		g := root.Children[0]
		require.Len(t, g.Children, 3)
		assert.Equal(t, "multi_point_source", g.Children[0].Tag)
		assert.Equal(t, "area_source", g.Children[1].Tag)
		assert.Equal(t, "simple_fault_source", g.Children[2].Tag)
	})

	t.Run("superseded weights are rejected", func(t *testing.T) {
		root := parseModel(t, model(group("    srcs_weights = [0.5, 0.5]",
			pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"), ""))))
		err := Model(root, "consolidate_test.hcl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "srcs_weights must be removed in consolidate_test.hcl")
	})

	t.Run("only groups may sit under the model", func(t *testing.T) {
		root := parseModel(t, model(pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"), "")))
		err := Model(root, "consolidate_test.hcl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "got a point_source block instead of a source_group")
	})

	t.Run("mixed distribution kinds cannot merge", func(t *testing.T) {
		root := parseModel(t, model(group("",
			pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1]"), ""),
			pointSrc("p2", -121.0, 10.0, "WC1994", grMFD(7.0), ""))))
		err := Model(root, "consolidate_test.hcl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot merge a trunc_gutenberg_richter_mfd into a run of incremental_mfd blocks")
	})
}

func TestModelThenConvert(t *testing.T) {
	root := parseModel(t, model(group("",
		pointSrc("p1", -122.0, 10.0, "WC1994", incMFD("[0.1, 0.2]"), ""),
		pointSrc("p2", -121.0, 10.0, "WC1994", incMFD("[0.3, 0.4]"), ""))))
	require.NoError(t, Model(root, "consolidate_test.hcl"))

	c := convert.NewSourceConverter(convert.Params{})
	g, err := c.ConvertSourceGroup(context.Background(), root.Children[0])
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())

	mp, ok := g.Sources()[0].(*source.MultiPointSource)
	require.True(t, ok)
	assert.Equal(t, "mps-0", mp.ID())
	assert.Equal(t, "Active Shallow Crust", mp.TRT())
	assert.Equal(t, 2, mp.Mesh.Len())
	assert.Equal(t, 2, mp.MFD.Len())
}
