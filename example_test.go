package hexdiv_test

import (
	"context"
	"fmt"
	"log"

	hexdiv "github.com/hupe1980/hexdiv"
	"github.com/hupe1980/hexdiv/dataset"
	"github.com/hupe1980/hexdiv/model"
)

func Example() {
	ctx := context.Background()

	hd, err := hexdiv.InMemory().
		Grid(gridStub{}).
		Resolutions(3).
		ESN(50).
		Build()
	if err != nil {
		log.Fatal(err)
	}
	defer hd.Close()

	rows := []model.RawOccurrence{
		{Lon: 1, Lat: 1, Species: "Gadus morhua", Count: 7},
		{Lon: 1, Lat: 1, Species: "Clupea harengus", Count: 3},
		{Lon: 2, Lat: 1, Species: "Solea solea"},
	}
	if _, err := hd.Ingest(ctx, dataset.NewMemory(rows)); err != nil {
		log.Fatal(err)
	}

	table, err := hd.Aggregate(ctx, 3, model.DepthAll, 0)
	if err != nil {
		log.Fatal(err)
	}

	cell := table["res3-001"]
	fmt.Printf("n=%d richness=%d\n", cell.N, cell.Richness)
	// Output:
	// n=10 richness=2
}
