package grid

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/hupe1980/hexdiv/model"
)

// H3 implements Grid on Uber's H3 hexagonal discrete global grid.
type H3 struct{}

var _ Grid = H3{}

// NewH3 returns the H3-backed grid.
func NewH3() H3 {
	return H3{}
}

// PointToCell returns the H3 cell containing the point.
func (H3) PointToCell(lon, lat float64, res model.Resolution) (model.CellID, error) {
	if !model.ValidCoordinates(lon, lat) {
		return "", fmt.Errorf("%w: lon=%v lat=%v", ErrOutOfRange, lon, lat)
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), int(res))
	if err != nil {
		return "", fmt.Errorf("h3: point to cell: %w", err)
	}
	return model.CellID(cell.String()), nil
}

// CellBoundary returns the hexagon (or pentagon) boundary of the cell.
func (H3) CellBoundary(cell model.CellID) ([]model.LatLng, error) {
	c, err := cellFromID(cell)
	if err != nil {
		return nil, err
	}
	boundary, err := c.Boundary()
	if err != nil {
		return nil, fmt.Errorf("h3: cell boundary: %w", err)
	}
	ring := make([]model.LatLng, 0, len(boundary))
	for _, v := range boundary {
		ring = append(ring, model.LatLng{Lat: v.Lat, Lng: v.Lng})
	}
	return ring, nil
}

// PolygonToCells returns the cells covering the polygon at the resolution.
func (H3) PolygonToCells(loop []model.LatLng, res model.Resolution) ([]model.CellID, error) {
	geoLoop := make(h3.GeoLoop, 0, len(loop))
	for _, v := range loop {
		geoLoop = append(geoLoop, h3.NewLatLng(v.Lat, v.Lng))
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: geoLoop}, int(res))
	if err != nil {
		return nil, fmt.Errorf("h3: polygon to cells: %w", err)
	}
	ids := make([]model.CellID, 0, len(cells))
	for _, c := range cells {
		ids = append(ids, model.CellID(c.String()))
	}
	return ids, nil
}

func cellFromID(cell model.CellID) (h3.Cell, error) {
	c := h3.Cell(h3.IndexFromString(string(cell)))
	if !c.IsValid() {
		return 0, fmt.Errorf("%w: invalid cell %q", ErrOutOfRange, cell)
	}
	return c, nil
}
