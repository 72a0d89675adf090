package main

import (
	"bytes"
	"log"
	"net/http"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/paulmach/orb"
	geoarrow "github.com/tingold/orb-geoarrow"
)

type City struct {
	Name      string
	Longitude float64
	Latitude  float64
}

var cities = []City{
	{"Tokyo", 139.6917, 35.6895},
	{"New York", -73.9857, 40.7484},
	{"London", -0.1276, 51.5074},
	{"Paris", 2.3522, 48.8566},
	{"Beijing", 116.4074, 39.9042},
	{"Moscow", 37.6173, 55.7558},
	{"São Paulo", -46.6333, -23.5505},
	{"Mumbai", 72.8777, 19.0760},
	{"Los Angeles", -118.2437, 34.0522},
	{"Shanghai", 121.4737, 31.2304},
	{"Istanbul", 28.9784, 41.0082},
	{"Buenos Aires", -58.3816, -34.6037},
	{"Cairo", 31.2357, 30.0444},
	{"Sydney", 151.2093, -33.8688},
	{"Berlin", 13.4050, 52.5200},
}

func main() {
	// Build a GeoArrow point array
	builder, err := geoarrow.NewBuilder(geoarrow.TypePoint, memory.DefaultAllocator)
	if err != nil {
		log.Fatalf("Failed to create builder: %v", err)
	}
	defer builder.Release()

	for _, city := range cities {
		if err := geoarrow.VisitOrb(orb.Point{city.Longitude, city.Latitude}, builder); err != nil {
			log.Fatalf("Failed to append %s: %v", city.Name, err)
		}
	}

	arr, err := builder.Finish()
	if err != nil {
		log.Fatalf("Failed to finish array: %v", err)
	}
	defer arr.Release()

	// Arrow IPC stream
	var arrowBuf bytes.Buffer
	field := builder.SchemaView().Field("geometry")
	if err := geoarrow.WriteIPC(&arrowBuf, field, arr); err != nil {
		log.Fatalf("Failed to create Arrow stream: %v", err)
	}
	arrowData := arrowBuf.Bytes()

	// Convert to FlatGeobuf through the array view
	view, err := geoarrow.NewArrayViewFromField(field)
	if err != nil {
		log.Fatalf("Failed to create array view: %v", err)
	}
	if err := view.SetArray(arr.Data()); err != nil {
		log.Fatalf("Failed to bind array: %v", err)
	}

	fgbWriter := geoarrow.NewFlatGeobufWriter()
	if err := view.Visit(0, view.Length(), fgbWriter); err != nil {
		log.Fatalf("Failed to convert array: %v", err)
	}

	var fgbBuf bytes.Buffer
	opts := &geoarrow.Options{
		Name:         "world_cities",
		Description:  "Major world cities",
		IncludeIndex: false,
		CRS:          geoarrow.WGS84(),
	}
	if err := fgbWriter.Write(&fgbBuf, opts); err != nil {
		log.Fatalf("Failed to create FlatGeobuf: %v", err)
	}
	flatgeobufData := fgbBuf.Bytes()

	// Get the directory of the client files (one level up from server)
	clientDir := filepath.Join("..", "client")

	// Create a custom handler that checks for data endpoints first
	fs := http.FileServer(http.Dir(clientDir))
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.fgb":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Write(flatgeobufData)
		case "/data.arrow":
			w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Write(arrowData)
		default:
			// Serve static files for everything else
			fs.ServeHTTP(w, r)
		}
	})

	log.Println("Server starting on http://localhost:8080")
	log.Println("Serving client files from:", clientDir)
	log.Fatal(http.ListenAndServe(":8080", nil))
}
