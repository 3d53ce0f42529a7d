// Package pchspi drives the SPI flash controller of Intel PCH chipsets
// through hardware sequencing: the controller runs each read, write, erase
// or discovery cycle itself and exchanges data through a 64-byte window.
//
// Registers are reached by name through a RegisterPort, so the same code
// serves every chipset generation described by a regs.Layout.
//
// # References:
//
// Intel (https://www.intel.com/content/www/us/en/products/docs/chipsets/)
//   - [PCH-SPI]: Intel 100 Series Chipset Family PCH Datasheet, Vol. 2, SPI Interface (https://www.intel.com/content/www/us/en/content-details/332691/)
//   - [ICH-SPI]: Intel 7 Series / C216 Chipset Family PCH Datasheet, SPI Interface (https://www.intel.com/content/www/us/en/content-details/326776/)
//
// JEDEC
//   - [JESD216]: Serial Flash Discoverable Parameters (SFDP) (https://www.jedec.org/standards-documents/docs/jesd216b)
//   - [JEP106]: Standard Manufacturer's Identification Code (https://www.jedec.org/standards-documents/docs/jep-106ab)
//
// SPI Flash
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
package pchspi
