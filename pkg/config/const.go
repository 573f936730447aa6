/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package config

const (
	ConfigDir  = ".go-encoder"
	ConfigFile = "config"

	DefaultLogLevel = "info"

	DefaultCardName      = "card0"
	DefaultCardIP        = "192.168.0.50"
	DefaultEtherbonePort = 1234
	DefaultCSRBase       = 0
	DefaultClockPeriod   = "1ms"
	DefaultClockBatch    = 1
	DefaultGPIORoot      = "/sys/class/gpio"
	DefaultIOStandard    = "LVCMOS33"

	DefaultControlIP      = "0.0.0.0"
	DefaultControlApiPort = 8000
	DefaultDBPath         = "/tmp/go-encoder.db"
	DefaultTimeout        = "500ms"

	DefaultSimStepTicks = 2
	DefaultSimPPR       = 1000

	SourceSim  = "sim"
	SourceGPIO = "gpio"
)
