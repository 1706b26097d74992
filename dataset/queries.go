// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

// ZillowDB is the database holding the Zillow property tables.
const ZillowDB = "zillow"

// props2017Query selects the main numeric features of properties sold in 2017
// together with the log error of the Zestimate.
const props2017Query = `
SELECT
  bedroomcnt,
  bathroomcnt,
  roomcnt,
  numberofstories,
  fireplaceflag,
  poolcnt,
  buildingqualitytypeid,
  calculatedfinishedsquarefeet,
  lotsizesquarefeet,
  latitude,
  longitude,
  structuretaxvaluedollarcnt,
  landtaxvaluedollarcnt,
  taxvaluedollarcnt,
  yearbuilt,
  taxamount,
  fips,
  logerror
FROM properties_2017 prop
JOIN predictions_2017 pred ON pred.id = prop.id
JOIN propertylandusetype land ON land.propertylandusetypeid = prop.propertylandusetypeid
WHERE prop.latitude IS NOT NULL
  AND prop.longitude IS NOT NULL
  AND pred.transactiondate LIKE '2017%'`

// zillowClusterFQuery selects all property columns with the latest 2017
// transaction date per parcel and all the lookup tables.
const zillowClusterFQuery = `
SELECT *
FROM properties_2017 prop
JOIN (
  SELECT parcelid, MAX(transactiondate) AS max_transactiondate
  FROM predictions_2017
  GROUP BY parcelid
) pred ON pred.parcelid = prop.parcelid
LEFT JOIN airconditioningtype ac ON ac.airconditioningtypeid = prop.airconditioningtypeid
LEFT JOIN architecturalstyletype arch ON arch.architecturalstyletypeid = prop.architecturalstyletypeid
LEFT JOIN buildingclasstype build ON build.buildingclasstypeid = prop.buildingclasstypeid
LEFT JOIN heatingorsystemtype heat ON heat.heatingorsystemtypeid = prop.heatingorsystemtypeid
LEFT JOIN propertylandusetype land ON land.propertylandusetypeid = prop.propertylandusetypeid
LEFT JOIN storytype st ON st.storytypeid = prop.storytypeid
LEFT JOIN typeconstructiontype con ON con.typeconstructiontypeid = prop.typeconstructiontypeid
WHERE prop.latitude IS NOT NULL
  AND prop.longitude IS NOT NULL
  AND pred.max_transactiondate LIKE '2017%'`

// zillowClusteringQuery selects the properties with their latest transaction
// (log error and date) and the descriptions from the lookup tables.
const zillowClusteringQuery = `
SELECT
  prop.*,
  predictions_2017.logerror,
  predictions_2017.transactiondate,
  ac.airconditioningdesc,
  arch.architecturalstyledesc,
  build.buildingclassdesc,
  heat.heatingorsystemdesc,
  land.propertylandusedesc,
  story.storydesc,
  con.typeconstructiondesc
FROM properties_2017 prop
JOIN (
  SELECT parcelid, MAX(transactiondate) AS max_transactiondate
  FROM predictions_2017
  GROUP BY parcelid
) pred USING (parcelid)
JOIN predictions_2017 ON pred.parcelid = predictions_2017.parcelid
                     AND pred.max_transactiondate = predictions_2017.transactiondate
LEFT JOIN airconditioningtype ac USING (airconditioningtypeid)
LEFT JOIN architecturalstyletype arch USING (architecturalstyletypeid)
LEFT JOIN buildingclasstype build USING (buildingclasstypeid)
LEFT JOIN heatingorsystemtype heat USING (heatingorsystemtypeid)
LEFT JOIN propertylandusetype land USING (propertylandusetypeid)
LEFT JOIN storytype story USING (storytypeid)
LEFT JOIN typeconstructiontype con USING (typeconstructiontypeid)
WHERE prop.latitude IS NOT NULL
  AND prop.longitude IS NOT NULL
  AND predictions_2017.transactiondate <= '2017-12-31'`
