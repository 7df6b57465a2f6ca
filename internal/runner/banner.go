package runner

import (
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/scanwatch/pkg/version"
)

const banner = `
                         __        __       __  
   ___ _______ ____ _  _/ /_____ _/ /______/ /  
  (_-</ __/ _ '/ _ \ |/|/ / _ '/ __/ __/ _ \  
 /___/\__/\_,_/_//_/__,__/\_,_/\__/\__/_//_/  
`

// showBanner is used to show the banner to the user
func showBanner() {
	gologger.Print().Msgf("%s\n", banner)
	gologger.Print().Msgf("\t\t%s\n\n", au.Faint("live scan dashboard "+version.GetVersion()))
}
