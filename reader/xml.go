package reader

import (
	"time"

	osm "github.com/omniscale/go-osm"
	posm "github.com/paulmach/osm"
)

// XML input is read with paulmach/osm and converted into go-osm
// elements, so that all formats share one element model.

func convertTags(tags posm.Tags) osm.Tags {
	if len(tags) == 0 {
		return nil
	}
	result := make(osm.Tags, len(tags))
	for _, t := range tags {
		result[t.Key] = t.Value
	}
	return result
}

func convertMetadata(version int, changeset posm.ChangesetID, ts time.Time, uid posm.UserID, user string) *osm.Metadata {
	return &osm.Metadata{
		Version:   int32(version),
		Changeset: int64(changeset),
		Timestamp: ts,
		UserID:    int32(uid),
		UserName:  user,
	}
}

func convertNode(n *posm.Node, withMetadata bool) osm.Node {
	nd := osm.Node{
		Element: osm.Element{ID: int64(n.ID), Tags: convertTags(n.Tags)},
		Long:    n.Lon,
		Lat:     n.Lat,
	}
	if withMetadata {
		nd.Metadata = convertMetadata(n.Version, n.ChangesetID, n.Timestamp, n.UserID, n.User)
	}
	return nd
}

func convertWay(w *posm.Way, withMetadata bool) osm.Way {
	way := osm.Way{
		Element: osm.Element{ID: int64(w.ID), Tags: convertTags(w.Tags)},
		Refs:    make([]int64, len(w.Nodes)),
	}
	for i, nd := range w.Nodes {
		way.Refs[i] = int64(nd.ID)
	}
	if withMetadata {
		way.Metadata = convertMetadata(w.Version, w.ChangesetID, w.Timestamp, w.UserID, w.User)
	}
	return way
}

func convertRelation(r *posm.Relation, withMetadata bool) osm.Relation {
	rel := osm.Relation{
		Element: osm.Element{ID: int64(r.ID), Tags: convertTags(r.Tags)},
		Members: make([]osm.Member, 0, len(r.Members)),
	}
	for _, m := range r.Members {
		var t osm.MemberType
		switch m.Type {
		case posm.TypeNode:
			t = osm.NodeMember
		case posm.TypeWay:
			t = osm.WayMember
		case posm.TypeRelation:
			t = osm.RelationMember
		default:
			continue
		}
		rel.Members = append(rel.Members, osm.Member{ID: m.Ref, Type: t, Role: m.Role})
	}
	if withMetadata {
		rel.Metadata = convertMetadata(r.Version, r.ChangesetID, r.Timestamp, r.UserID, r.User)
	}
	return rel
}
