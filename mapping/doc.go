/*
Package mapping defines the output layers and how OSM elements are
converted into features.

A Mapping is a list of layers. Each layer has a geometry type, a filter
that decides which elements are added and a list of fields with the
source of their values. Mappings are read from YAML files or created
with one of the built-in mappings:

	layers:
	  - name: roads
	    geometry: linestring
	    filter:
	      key: highway
	    fields:
	      - {name: id, type: real, width: 10, source: id}
	      - {name: type, type: string, width: 30, source: filter_value}
*/
package mapping
