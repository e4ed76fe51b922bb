package main

import (
	"fmt"
	"os"

	"github.com/bgrewell/e2e-kit"
	"github.com/bgrewell/e2e-kit/pkg/logging"
	"github.com/bgrewell/e2e-kit/pkg/options"
	"github.com/bgrewell/usage"
)

func readOptions(debug bool) []options.Option {
	if !debug {
		return nil
	}
	log := logging.NewSimpleLogger(os.Stderr, logging.LEVEL_TRACE, true)
	return []options.Option{options.WithLogger(log)}
}

func displayOCTVolumes(path string, verbose, debug bool) error {
	volumes, err := e2e.ReadOCTVolume(path, readOptions(debug)...)
	if err != nil {
		return err
	}

	fmt.Println("=== OCT Volumes ===")
	fmt.Printf("Total Volumes: %d\n", len(volumes))
	for _, v := range volumes {
		fmt.Printf("- %s  patient=%s  laterality=%s  slices=%d\n", v.VolumeID, v.PatientID, v.Laterality, v.NumSlices())
		if verbose {
			fmt.Printf("  name=%s %s  sex=%s  acquired=%s\n", v.FirstName, v.Surname, v.Sex, v.AcquisitionDate.Format("2006-01-02"))
			for name := range v.Contours {
				fmt.Printf("  contour: %s\n", name)
			}
		}
	}
	fmt.Println("====================")
	return nil
}

func displayFundusImages(path string, verbose, debug bool) error {
	images, err := e2e.ReadFundusImage(path, readOptions(debug)...)
	if err != nil {
		return err
	}

	fmt.Println("=== Fundus Images ===")
	fmt.Printf("Total Images: %d\n", len(images))
	for _, img := range images {
		fmt.Printf("- %s  patient=%s  laterality=%s  %dx%d\n", img.ImageID, img.PatientID, img.Laterality, img.Width, img.Height)
	}
	fmt.Println("=====================")
	return nil
}

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("e2eview"),
		usage.WithApplicationDescription("e2eview is a command-line tool for inspecting Heidelberg Engineering .e2e OCT container files. It lists the OCT volumes and fundus images a file contains along with their patient and acquisition metadata."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose output", "", nil)
	fundus := u.AddBooleanOption("f", "fundus", false, "List fundus images instead of OCT volumes", "", nil)
	debug := u.AddBooleanOption("d", "debug", false, "Log trace-level decode detail to stderr", "", nil)
	path := u.AddArgument(1, "e2e-path", "Path to the .e2e file to read", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("location of the .e2e file <path> must be provided"))
		os.Exit(1)
	}

	var err error
	if *fundus {
		err = displayFundusImages(*path, *verbose, *debug)
	} else {
		err = displayOCTVolumes(*path, *verbose, *debug)
	}
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
}
